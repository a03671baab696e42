package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xavierca1/leadsync/internal/entity"
)

type CheckStatus string

const (
	CheckValid       CheckStatus = "VALID"
	CheckInvalid     CheckStatus = "INVALID"
	CheckNonexistant CheckStatus = "NONEXISTANT"
)

// CheckResult is the checkpointed outcome of one validation check. Facts are
// values later checks depend on; they are replayed with the result.
type CheckResult struct {
	Status CheckStatus       `json:"Status"`
	Reason string            `json:"Reason,omitempty"`
	Facts  map[string]string `json:"Facts,omitempty"`
}

func valid() CheckResult { return CheckResult{Status: CheckValid} }

func invalid(reason string) CheckResult {
	return CheckResult{Status: CheckInvalid, Reason: reason}
}

const factDestinationNumber = "destination_number"

// Check is one step of the validation pipeline. RejectCode is the status
// callers receive when the check does not return VALID.
type Check struct {
	Name       string
	RejectCode int
	Run        func(ctx context.Context, lead *entity.Lead, facts map[string]string) (CheckResult, error)
}

// ValidationPipeline holds the ordered checks for each lead type.
type ValidationPipeline struct {
	checks map[entity.LeadType][]Check
}

func NewValidationPipeline(checks map[entity.LeadType][]Check) *ValidationPipeline {
	return &ValidationPipeline{checks: checks}
}

// DefaultChecks builds the standard ordered check list.
func DefaultChecks(accounts AccountService, locations LocationService, numbers NumberIntelligence, disallowedLineTypes []string) []Check {
	disallowed := make(map[string]struct{}, len(disallowedLineTypes))
	for _, t := range disallowedLineTypes {
		disallowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return []Check{
		{
			Name:       "ip-address",
			RejectCode: http.StatusUnauthorized,
			Run: func(ctx context.Context, lead *entity.Lead, _ map[string]string) (CheckResult, error) {
				return valid(), nil
			},
		},
		{
			Name:       "account",
			RejectCode: http.StatusBadRequest,
			Run: func(ctx context.Context, lead *entity.Lead, _ map[string]string) (CheckResult, error) {
				account, err := accounts.GetAccount(ctx, lead.UniversalRetailerID)
				if errors.Is(err, ErrNotFound) {
					return CheckResult{Status: CheckNonexistant, Reason: "account " + lead.UniversalRetailerID + " does not exist"}, nil
				}
				if err != nil {
					return CheckResult{}, err
				}
				if account.Churned {
					return invalid("account " + lead.UniversalRetailerID + " has churned"), nil
				}
				if account.OptedOut {
					return invalid("account " + lead.UniversalRetailerID + " has opted out of leads"), nil
				}
				return valid(), nil
			},
		},
		{
			Name:       "location",
			RejectCode: http.StatusBadRequest,
			Run: func(ctx context.Context, lead *entity.Lead, _ map[string]string) (CheckResult, error) {
				location, err := locations.GetLocation(ctx, lead.UniversalRetailerID, lead.LocationID)
				if errors.Is(err, ErrNotFound) {
					return CheckResult{Status: CheckNonexistant, Reason: "location " + lead.LocationID + " does not exist"}, nil
				}
				if err != nil {
					return CheckResult{}, err
				}
				if strings.TrimSpace(location.PhoneNumber) == "" {
					return invalid("location " + lead.LocationID + " has no phone number"), nil
				}
				info, err := numbers.Lookup(ctx, location.PhoneNumber)
				if err != nil {
					return CheckResult{}, err
				}
				if !info.Valid {
					return invalid("location " + lead.LocationID + " phone number is not valid"), nil
				}
				if _, bad := disallowed[strings.ToLower(info.LineType)]; bad {
					return invalid(fmt.Sprintf("location %s phone number is of unsupported type %s", lead.LocationID, info.LineType)), nil
				}
				return CheckResult{
					Status: CheckValid,
					Facts:  map[string]string{factDestinationNumber: location.PhoneNumber},
				}, nil
			},
		},
		{
			Name:       "distinct-numbers",
			RejectCode: http.StatusBadRequest,
			Run: func(ctx context.Context, lead *entity.Lead, facts map[string]string) (CheckResult, error) {
				if samePhoneNumber(lead.Lead.PhoneNumber, facts[factDestinationNumber]) {
					return invalid("phone number must differ from the location phone number"), nil
				}
				return valid(), nil
			},
		},
		{
			Name:       "submitter-number",
			RejectCode: http.StatusUnauthorized,
			Run: func(ctx context.Context, lead *entity.Lead, _ map[string]string) (CheckResult, error) {
				info, err := numbers.Lookup(ctx, lead.Lead.PhoneNumber)
				if err != nil {
					return CheckResult{}, err
				}
				switch {
				case !info.Valid:
					return invalid("phone number " + lead.Lead.PhoneNumber + " is not valid"), nil
				case info.Blocked:
					return invalid("phone number " + lead.Lead.PhoneNumber + " is blocked"), nil
				case info.OptedOut:
					return invalid("phone number " + lead.Lead.PhoneNumber + " has opted out"), nil
				}
				return valid(), nil
			},
		},
	}
}

// run executes the checks for the lead's type in order, one checkpointed
// step each, and stops at the first non-VALID result.
func (p *ValidationPipeline) run(ctx context.Context, inv *invocation, lead *entity.Lead, rec Recorder) (*ValidationError, error) {
	if p == nil {
		return nil, nil
	}
	facts := map[string]string{}
	for _, check := range p.checks[lead.LeadType] {
		check := check
		result, err := runStep(ctx, inv, "validate:"+check.Name, func(ctx context.Context) (CheckResult, error) {
			return check.Run(ctx, lead, facts)
		})
		if err != nil {
			return nil, fmt.Errorf("validation check %s: %w", check.Name, err)
		}
		for k, v := range result.Facts {
			facts[k] = v
		}
		if result.Status != CheckValid {
			rec.ValidationRejected(check.Name)
			inv.log.InfoContext(ctx, "lead rejected", "lead_id", lead.LeadID, "check", check.Name, "status", result.Status, "reason", result.Reason)
			return &ValidationError{
				Check:  check.Name,
				Status: string(result.Status),
				Reason: result.Reason,
				Code:   check.RejectCode,
			}, nil
		}
	}
	return nil, nil
}
