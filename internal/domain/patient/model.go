package patient

import (
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// Patient is the minimal view of a patient the membership core needs.
// Demographic CRUD lives elsewhere; this package only reads and, for
// founder-sponsor assignment, updates a single field.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// TimeZone is the patient's IANA time zone. Renewal jobs use it to
	// decide whether "today" is the patient's renewal day.
	TimeZone string `json:"time_zone"`
	// FounderSponsorID links the patient to the founder who sponsors the
	// membership, assigned during plan replacement.
	FounderSponsorID *string `json:"founder_sponsor_id,omitempty"`
	types.BaseModel
}

func (p *Patient) Validate() error {
	if p.Name == "" {
		return ierr.NewError("patient name is required").Mark(ierr.ErrValidation)
	}
	return nil
}
