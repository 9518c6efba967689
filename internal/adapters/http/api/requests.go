package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/leadscore/internal/domain/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body into v and validates its tags.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// parseTime accepts RFC3339 timestamps and bare YYYY-MM-DD dates.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return model.ParseDate(s)
}

// parseAsOf reads the optional as_of query parameter; empty means today.
func parseAsOf(r *http.Request, op string) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, WrapKind(op, ErrBadRequest, err)
	}
	return t, nil
}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	EventID    string   `json:"event_id" validate:"omitempty,max=128"`
	CompanyID  string   `json:"company_id" validate:"required,max=128"`
	EventType  string   `json:"event_type" validate:"required,max=64"`
	EventTime  string   `json:"event_time" validate:"omitempty"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Source     string   `json:"source" validate:"omitempty,max=64"`
	URL        string   `json:"url" validate:"omitempty,url"`
}

func (e eventRequest) toModel() (model.Event, error) {
	ev := model.Event{
		ID:         e.EventID,
		CompanyID:  e.CompanyID,
		Type:       e.EventType,
		Confidence: e.Confidence,
		Source:     e.Source,
		URL:        e.URL,
	}
	if e.EventTime != "" {
		t, err := parseTime(e.EventTime)
		if err != nil {
			return model.Event{}, err
		}
		ev.Time = t
	}
	return ev, nil
}

type companyRequest struct {
	ID                   string `json:"id" validate:"required,max=128"`
	Name                 string `json:"name" validate:"omitempty,max=256"`
	Domain               string `json:"domain" validate:"omitempty,fqdn"`
	Status               string `json:"status" validate:"omitempty,max=64"`
	AlignmentOKToContact *bool  `json:"alignment_ok_to_contact"`
	HasCTO               *bool  `json:"has_cto"`
}

func (c companyRequest) toModel() model.Company {
	return model.Company{
		ID:                   c.ID,
		Name:                 c.Name,
		Domain:               c.Domain,
		Status:               c.Status,
		AlignmentOKToContact: c.AlignmentOKToContact,
		HasCTO:               c.HasCTO,
	}
}

type outreachRequest struct {
	CompanyID string `json:"company_id" validate:"required,max=128"`
	SentAt    string `json:"sent_at" validate:"required"`
	Outcome   string `json:"outcome" validate:"omitempty,oneof=replied declined bounced no_reply"`
}

type nightlyRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type criticRequest struct {
	Subject string `json:"subject" validate:"max=512"`
	Message string `json:"message" validate:"required,max=20000"`
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}
