package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/lending-service/internal/config"
	"github.com/Dan9191/lending-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendInstallmentReminder notifies a borrower of an upcoming or overdue installment
func (s *Sender) SendInstallmentReminder(due models.DueInstallment, overdue bool) error {
	return s.send(s.installmentReminder(due, overdue))
}

// SendTransactionNotification sends a notification email for deposit or withdrawal
func (s *Sender) SendTransactionNotification(owner *models.User, account *models.Account, amount decimal.Decimal, txType models.TransactionType) error {
	return s.send(s.transactionNotification(owner, account, amount, txType, time.Now()))
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", e.To[0], err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", e.To[0], e.Subject)
	return nil
}

func (s *Sender) installmentReminder(due models.DueInstallment, overdue bool) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{due.BorrowerEmail}
	if overdue {
		e.Subject = "Overdue Installment Notification"
	} else {
		e.Subject = "Upcoming Installment Reminder"
	}

	body := fmt.Sprintf("Dear %s,\n\n", due.BorrowerName)
	if overdue {
		body += fmt.Sprintf(
			"Installment %d of loan %d, amounting to %s, was due on %s and is still unpaid.\n"+
				"Please pay it as soon as possible.\n",
			due.Number, due.LoanID, due.Amount.StringFixed(2), due.DueDate.Format("2006-01-02"),
		)
	} else {
		body += fmt.Sprintf(
			"This is a reminder that installment %d of loan %d, amounting to %s, is due on %s.\n"+
				"Please ensure sufficient funds are available in your account.\n",
			due.Number, due.LoanID, due.Amount.StringFixed(2), due.DueDate.Format("2006-01-02"),
		)
	}
	body += "\nBest regards,\nLending Service"
	e.Text = []byte(body)
	return e
}

func (s *Sender) transactionNotification(owner *models.User, account *models.Account, amount decimal.Decimal, txType models.TransactionType, at time.Time) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{owner.Email}

	name := owner.FullName
	if name == "" {
		name = owner.TradeName
	}
	body := fmt.Sprintf("Dear %s,\n\n", name)
	if txType == models.TxDeposit {
		e.Subject = "Deposit Notification"
		body += fmt.Sprintf("Your account %d has been credited with %s.\n", account.ID, amount.StringFixed(2))
	} else {
		e.Subject = "Withdrawal Notification"
		body += fmt.Sprintf("An amount of %s has been withdrawn from your account %d.\n", amount.StringFixed(2), account.ID)
	}
	body += fmt.Sprintf(
		"Transaction time: %s\n"+
			"Current balance: %s\n",
		at.Format("2006-01-02 15:04:05"), account.Balance.StringFixed(2),
	)
	body += "\nBest regards,\nLending Service"
	e.Text = []byte(body)
	return e
}
