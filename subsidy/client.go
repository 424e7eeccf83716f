package subsidy

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/careerup/generic"
)

// Client is a company the consultant office files applications for.
type Client struct {
	ID       generic.ClientID
	OfficeID generic.OfficeID

	Name          string
	ContactPerson string
	Email         string
	Phone         string
	EmployeeCount int
	Industry      string

	// PlanSubmittedAt is when the career-up plan reached the labour bureau.
	// Zero when not yet submitted.
	PlanSubmittedAt generic.TimePoint

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize trims free-text fields.
func (c *Client) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.ContactPerson = strings.TrimSpace(c.ContactPerson)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}

func (c Client) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}
	if c.EmployeeCount < 0 {
		problems = append(problems, "employee_count must not be negative")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		problems = append(problems, fmt.Sprintf("email %q is not an address", c.Email))
	}
	if len(problems) > 0 {
		return &generic.ValidationError{Field: "client", Problems: problems}
	}
	return nil
}

// ClientPatch holds optional replacements. Nil fields are left unchanged.
type ClientPatch struct {
	Name            *string
	ContactPerson   *string
	Email           *string
	Phone           *string
	EmployeeCount   *int
	Industry        *string
	PlanSubmittedAt *generic.TimePoint
	Notes           *string
}

func (p ClientPatch) Apply(c *Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.ContactPerson != nil {
		c.ContactPerson = *p.ContactPerson
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.EmployeeCount != nil {
		c.EmployeeCount = *p.EmployeeCount
	}
	if p.Industry != nil {
		c.Industry = *p.Industry
	}
	if p.PlanSubmittedAt != nil {
		c.PlanSubmittedAt = *p.PlanSubmittedAt
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
}

// PlanWarning returns a warning when the client's career-up plan was not on
// file before the conversion. The subsidy is only paid for conversions made
// under a plan submitted in advance.
func PlanWarning(c Client, a Application) string {
	switch {
	case c.PlanSubmittedAt.IsZero():
		return "キャリアアップ計画書の提出日が未登録です"
	case !a.ConversionDate.IsZero() && a.ConversionDate.Before(c.PlanSubmittedAt):
		return fmt.Sprintf("転換日(%s)がキャリアアップ計画書の提出日(%s)より前です",
			a.ConversionDate.String(), c.PlanSubmittedAt.String())
	}
	return ""
}
