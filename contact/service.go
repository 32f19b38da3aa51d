// Package contact validates, stores and announces contact form submissions.
package contact

import (
	"cmp"
	"context"
	"errors"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"bamikavision/logging"
	"bamikavision/models"
	"bamikavision/store"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const DefaultMinMessageLength = 5

// Input is a contact form submission as received from the visitor.
type Input struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Message         string `json:"message" validate:"required,max=5000"`
	CaptchaID       string `json:"captchaId,omitempty" validate:"-"`
	CaptchaSolution string `json:"captchaSolution,omitempty" validate:"-"`
}

// Notifier is told about every stored message.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, msg models.ContactMessage) error
}

// CaptchaVerifier checks a captcha solution, as captcha.VerifyString does.
type CaptchaVerifier func(id, solution string) bool

type Options struct {
	MinMessageLength int
	// Captcha, when set, must accept the submitted solution.
	Captcha CaptchaVerifier
}

type Service struct {
	messages  store.MessageRepository
	notifiers []Notifier
	minLen    int
	captcha   CaptchaVerifier
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewService(messages store.MessageRepository, opts Options, notifiers ...Notifier) *Service {
	if opts.MinMessageLength <= 0 {
		opts.MinMessageLength = DefaultMinMessageLength
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		messages:  messages,
		notifiers: notifiers,
		minLen:    opts.MinMessageLength,
		captcha:   opts.Captcha,
		validate:  v,
		logger:    logging.NewLogger("contact"),
	}
}

// Validate trims the input and checks every rule, collecting all failures.
func (s *Service) Validate(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)

	var fields []FieldError
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return in, err
		}
		for _, fe := range verrs {
			param, _ := strconv.Atoi(fe.Param())
			fields = append(fields, FieldError{Field: fe.Field(), Code: fe.Tag(), Param: param})
		}
	}

	if in.Message != "" && utf8.RuneCountInString(in.Message) < s.minLen {
		fields = append(fields, FieldError{Field: "message", Code: CodeMin, Param: s.minLen})
	}

	if s.captcha != nil && (in.CaptchaID == "" || !s.captcha(in.CaptchaID, strings.TrimSpace(in.CaptchaSolution))) {
		fields = append(fields, FieldError{Field: "captcha", Code: CodeCaptcha})
	}

	if len(fields) > 0 {
		return in, &ValidationError{Fields: fields}
	}
	return in, nil
}

// Submit validates and stores the message, then tells every notifier.
// Notifier failures are logged and never returned.
func (s *Service) Submit(ctx context.Context, in Input) (*models.ContactMessage, error) {
	in, err := s.Validate(in)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.Append(ctx, in.Name, in.Email, in.Message)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("message_id", msg.ID).Str("email", msg.Email).Msg("Contact message stored")

	for _, n := range s.notifiers {
		if err := n.NotifyNewMessage(ctx, *msg); err != nil {
			s.logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("Notification failed")
		}
	}
	return msg, nil
}

// ListRecent returns every message, newest first. Equal timestamps are
// ordered by descending id.
func (s *Service) ListRecent(ctx context.Context) ([]models.ContactMessage, error) {
	messages, err := s.messages.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(messages, func(a, b models.ContactMessage) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return messages, nil
}
