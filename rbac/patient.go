package rbac

import (
	"context"
)

// ConsentLedger answers whether a patient has granted a specific
// accessor access to their records. Implementations typically back onto
// a consent service or database; the zero-dependency default denies
// everything.
type ConsentLedger interface {
	// HasConsent reports whether patientID has granted accessorID
	// access under the named relationship ("provider" or "family").
	HasConsent(ctx context.Context, patientID, accessorID, relationship string) (bool, error)
}

// DenyAllConsents is the default ConsentLedger: no consent exists until
// a real ledger is wired in.
type DenyAllConsents struct{}

func (DenyAllConsents) HasConsent(context.Context, string, string, string) (bool, error) {
	return false, nil
}

var _ ConsentLedger = DenyAllConsents{}

// ObligationAuditLog marks a decision that must be written to the audit
// trail before the data leaves the system.
const ObligationAuditLog = "audit_log"

// ReasonConsentUnavailable is the decision reason when the consent
// ledger errored and access was denied fail-closed. Callers use it to
// record ledger failures distinctly from ordinary denials.
const ReasonConsentUnavailable = "consent lookup failed"

// PatientAccessRequest describes one attempted access to an individual
// patient's data.
type PatientAccessRequest struct {
	// Subject is the stable identifier of the accessor.
	Subject string

	// Role is the accessor's resolved role.
	Role Role

	// PatientID identifies whose record is being accessed.
	PatientID string

	// Action is "read" or "write".
	Action string
}

// PatientPolicy decides access to individual patient records. It layers
// domain rules over the generic evaluator:
//
//   - patients always access their own data
//   - administrative roles never read or write individual records;
//     SUPER_ADMIN may read, and every such read carries an audit
//     obligation
//   - clinical and family access requires recorded consent
type PatientPolicy struct {
	consents ConsentLedger
}

// NewPatientPolicy builds the policy. A nil ledger defaults to
// DenyAllConsents.
func NewPatientPolicy(consents ConsentLedger) *PatientPolicy {
	if consents == nil {
		consents = DenyAllConsents{}
	}
	return &PatientPolicy{consents: consents}
}

// CanAccessPatientData evaluates one access request. A ledger error
// denies; consent lookups fail closed.
func (p *PatientPolicy) CanAccessPatientData(ctx context.Context, req PatientAccessRequest) Decision {
	if req.Subject == "" || req.PatientID == "" {
		return Decision{Allowed: false, Reason: "incomplete request"}
	}
	if req.Action != "read" && req.Action != "write" {
		return Decision{Allowed: false, Reason: "unknown action"}
	}

	// Self-access needs no consent and no role check.
	if req.Subject == req.PatientID {
		return Decision{Allowed: true, Reason: "self access"}
	}

	switch req.Role {
	case RoleSuperAdmin:
		if req.Action == "read" {
			return Decision{
				Allowed:     true,
				Reason:      "super admin read",
				Obligations: []string{ObligationAuditLog},
			}
		}
		return Decision{Allowed: false, Reason: "admin roles cannot write patient data"}

	case RoleAdmin:
		// Administrative duties never require individual records.
		return Decision{Allowed: false, Reason: "admin roles cannot access patient data"}

	case RoleDoctor, RoleNurse, RolePharmacist, RoleClinician:
		return p.consentDecision(ctx, req, "provider")

	case RoleFamily:
		return p.consentDecision(ctx, req, "family")
	}

	return Decision{Allowed: false, Reason: "no matching grant"}
}

func (p *PatientPolicy) consentDecision(ctx context.Context, req PatientAccessRequest, relationship string) Decision {
	if relationship == "family" && req.Action == "write" {
		return Decision{Allowed: false, Reason: "family access is read-only"}
	}

	ok, err := p.consents.HasConsent(ctx, req.PatientID, req.Subject, relationship)
	if err != nil {
		return Decision{Allowed: false, Reason: ReasonConsentUnavailable}
	}
	if !ok {
		return Decision{Allowed: false, Reason: "no consent on record"}
	}
	return Decision{
		Allowed:     true,
		Reason:      relationship + " access with consent",
		Obligations: []string{ObligationAuditLog},
	}
}
