// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/config"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

// Notifier tells the party now holding a claim that it has work to do.
type Notifier interface {
	NotifyClaimEvent(claim *models.Claim, event string, actor workflow.Actor)
}

type NotificationService struct {
	config *config.Config
	log    logrus.FieldLogger
}

// Events that hand work to another party
const (
	NoticeInfoRequested = "INFO_REQUESTED"
	NoticeInfoSubmitted = "INFO_SUBMITTED"
)

var handoffTemplate = template.Must(template.New("handoff").Parse(
	`<p>Claim <strong>{{.ClaimNumber}}</strong> needs your attention.</p>
<p>Event: {{.Event}}<br>Status: {{.Status}}<br>Stage: {{.Stage}}</p>
<p>Triggered by a {{.ActorRole}} user.</p>`))

func NewNotificationService(config *config.Config, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		config: config,
		log:    log.WithField("component", "notifications"),
	}
}

// recipientFor maps an event to the mailbox of the party that must act next.
func (s *NotificationService) recipientFor(event string) (string, string) {
	switch event {
	case string(workflow.ActionSendToHospital), string(workflow.ActionSendLogToHospital), NoticeInfoSubmitted:
		return "hospital", s.config.Email.HospitalDesk
	case string(workflow.ActionSendToAgent), NoticeInfoRequested:
		return "agent", s.config.Email.AgentDesk
	case string(workflow.ActionSubmitToAgency):
		return "agency", s.config.Email.AgencyDesk
	default:
		return "", ""
	}
}

// NotifyClaimEvent never fails the caller. Delivery problems are logged.
func (s *NotificationService) NotifyClaimEvent(claim *models.Claim, event string, actor workflow.Actor) {
	party, to := s.recipientFor(event)
	if party == "" {
		return
	}

	entry := s.log.WithFields(logrus.Fields{
		"claim_id": claim.ID,
		"event":    event,
		"party":    party,
	})

	if to == "" || !s.config.Email.SMTPEnabled() {
		entry.Info("Claim handoff notice (mail not configured)")
		return
	}

	body, err := s.renderTemplate(map[string]interface{}{
		"ClaimNumber": claim.ClaimNumber,
		"Event":       event,
		"Status":      claim.Status,
		"Stage":       claim.Stage,
		"ActorRole":   actor.Role,
	})
	if err != nil {
		entry.WithError(err).Warn("Failed to render handoff notice")
		return
	}

	subject := fmt.Sprintf("Claim %s: %s", claim.ClaimNumber, event)
	go func() {
		if err := s.sendEmail(to, subject, body); err != nil {
			entry.WithError(err).Warn("Failed to send handoff notice")
		}
	}()
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	// Setup authentication
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	// Compose message
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.config.Email.FromName, s.config.Email.FromEmail, to, subject, body))

	// Send email
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := handoffTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
