package notification

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"gorm.io/gorm"

	"github.com/bmartins/loja-online/internal/models"
)

var (
	ErrInvalidEmail = errors.New("destinatário de email inválido")
	ErrInvalidPhone = errors.New("número de telefone inválido")
)

// Notifier is one outgoing message on a concrete channel. The variant set is
// closed: email and SMS, dispatched through this interface, no discovery.
type Notifier interface {
	Channel() string
	Recipient() string
	Validate() bool
	Send(log *slog.Logger) (string, error)
}

type Email struct {
	To      string
	Message string
}

func (e Email) Channel() string   { return "email" }
func (e Email) Recipient() string { return e.To }

func (e Email) Validate() bool {
	return strings.TrimSpace(e.To) != "" &&
		strings.Contains(e.To, "@") &&
		strings.Contains(e.To, ".")
}

func (e Email) Send(log *slog.Logger) (string, error) {
	if !e.Validate() {
		return "", ErrInvalidEmail
	}

	// Console transport stands in for a real provider.
	log.Info("enviando email", "destinatario", e.To, "mensagem", e.Message)
	return fmt.Sprintf("Email enviado com sucesso para %s", e.To), nil
}

type SMS struct {
	To      string
	Message string
}

func (s SMS) Channel() string   { return "sms" }
func (s SMS) Recipient() string { return s.To }

func (s SMS) Validate() bool {
	if len(s.To) < 10 {
		return false
	}
	for _, r := range s.To {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (s SMS) Send(log *slog.Logger) (string, error) {
	if !s.Validate() {
		return "", ErrInvalidPhone
	}

	log.Info("enviando sms", "destinatario", s.To, "mensagem", s.Message)
	return fmt.Sprintf("SMS enviado com sucesso para %s", s.To), nil
}

// Service queues notifications and drains them synchronously. One instance
// is shared by every request, so the queue is guarded. Failures are
// collected as text, never propagated; a Notification row records each
// attempt when a DB is attached.
type Service struct {
	DB  *gorm.DB
	Log *slog.Logger

	mu    sync.Mutex
	queue []Notifier

	sleep func(time.Duration)
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{DB: db, Log: log, sleep: time.Sleep}
}

func (s *Service) Enqueue(n Notifier) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()
}

func (s *Service) EnqueueEmail(to, message string) {
	s.Enqueue(Email{To: to, Message: message})
}

func (s *Service) EnqueueSMS(to, message string) {
	s.Enqueue(SMS{To: to, Message: message})
}

func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// SendAll drains the queue in order and clears it. Each entry produces one
// result line, success or failure. The queue is detached under the lock so
// sending never blocks concurrent Enqueue calls.
func (s *Service) SendAll() []string {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	results := make([]string, 0, len(pending))
	for _, n := range pending {
		result, err := s.dispatch(n, nil, nil)
		if err != nil {
			results = append(results, fmt.Sprintf("Erro ao enviar notificação: %v", err))
			continue
		}
		results = append(results, result)
	}
	return results
}

// SendTo sends one notification immediately, recording user and order links
// on the persisted row.
func (s *Service) SendTo(n Notifier, userID, orderID *uint) (string, error) {
	return s.dispatch(n, userID, orderID)
}

// SendWithRetry retries a fixed number of times with a fixed one second
// pause between attempts.
func (s *Service) SendWithRetry(n Notifier, attempts int) (string, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := s.dispatch(n, nil, nil)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < attempts-1 {
			s.sleep(time.Second)
		}
	}
	return "", fmt.Errorf("falha no envio após %d tentativas: %w", attempts, lastErr)
}

func (s *Service) dispatch(n Notifier, userID, orderID *uint) (string, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	result, err := n.Send(log)

	if s.DB != nil {
		row := models.Notification{
			Channel:   n.Channel(),
			Recipient: n.Recipient(),
			Message:   message(n),
			UserID:    userID,
			OrderID:   orderID,
			SentAt:    time.Now(),
		}
		if err != nil {
			row.Status = "Falha"
			row.Error = err.Error()
		} else {
			row.Status = "Enviada"
			now := time.Now()
			row.ConfirmedAt = &now
		}
		if dbErr := s.DB.Create(&row).Error; dbErr != nil {
			log.Error("falha ao registrar notificação", "error", dbErr)
		}
	}

	return result, err
}

func message(n Notifier) string {
	switch v := n.(type) {
	case Email:
		return v.Message
	case SMS:
		return v.Message
	default:
		return ""
	}
}
