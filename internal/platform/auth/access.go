package auth

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionTransition Action = "status-transition"
)

type ResourceKind string

const (
	KindUser          ResourceKind = "User"
	KindPatient       ResourceKind = "Patient"
	KindDoctor        ResourceKind = "Doctor"
	KindNurse         ResourceKind = "Nurse"
	KindAppointment   ResourceKind = "Appointment"
	KindPrescription  ResourceKind = "Prescription"
	KindLabResult     ResourceKind = "LabResult"
	KindBill          ResourceKind = "Bill"
	KindMedicalRecord ResourceKind = "MedicalRecord"
)

var kindNames = map[ResourceKind]string{
	KindUser:          "user",
	KindPatient:       "patient",
	KindDoctor:        "doctor",
	KindNurse:         "nurse",
	KindAppointment:   "appointment",
	KindPrescription:  "prescription",
	KindLabResult:     "lab result",
	KindBill:          "bill",
	KindMedicalRecord: "medical record",
}

func (k ResourceKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return strings.ToLower(string(k))
}

// Refs are the ownership references of a row, existing or about to be created.
type Refs struct {
	UserID       *uuid.UUID
	PatientID    *uuid.UUID
	DoctorID     *uuid.UUID
	NurseID      *uuid.UUID
	Confidential bool
}

type targetType int

const (
	targetCollection targetType = iota
	targetRow
	targetMissing
)

// Target is what an action addresses.
type Target struct {
	typ  targetType
	refs Refs
}

// Collection addresses a list; the decision carries the row filter.
func Collection() Target { return Target{typ: targetCollection} }

// Row addresses an existing row.
func Row(refs Refs) Target { return Target{typ: targetRow, refs: refs} }

// Proposed addresses a row about to be created.
func Proposed(refs Refs) Target { return Target{typ: targetRow, refs: refs} }

// Missing addresses a row that does not exist.
func Missing() Target { return Target{typ: targetMissing} }

// Scope restricts a list query. Nil fields do not filter.
type Scope struct {
	UserID              *uuid.UUID
	PatientID           *uuid.UUID
	DoctorID            *uuid.UUID
	NurseID             *uuid.UUID
	ExcludeConfidential bool
}

func (s Scope) Unrestricted() bool {
	return s.UserID == nil && s.PatientID == nil && s.DoctorID == nil && s.NurseID == nil && !s.ExcludeConfidential
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  apperr.Kind
	Scope   Scope
	// WritableFields limits an update; nil means every field.
	WritableFields []string
	// AllowedStatuses limits a status transition; nil means every status.
	AllowedStatuses []string

	action Action
	kind   ResourceKind
}

// Err converts a denial into an apperr error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == apperr.KindNotFound {
		return apperr.NotFound("%s not found", d.kind)
	}
	return apperr.Forbidden("not permitted to %s this %s", d.action, d.kind)
}

// CheckFields rejects an update touching fields outside WritableFields.
func (d Decision) CheckFields(fields []string) error {
	if err := d.Err(); err != nil {
		return err
	}
	if d.WritableFields == nil {
		return nil
	}
	allowed := make(map[string]bool, len(d.WritableFields))
	for _, f := range d.WritableFields {
		allowed[f] = true
	}
	for _, f := range fields {
		if !allowed[f] {
			return apperr.Forbidden("not permitted to update field %s on this %s", f, d.kind)
		}
	}
	return nil
}

func (d Decision) CanTransitionTo(status string) bool {
	if !d.Allowed {
		return false
	}
	if d.AllowedStatuses == nil {
		return true
	}
	for _, s := range d.AllowedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

const accessModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

var (
	allActions    = []Action{ActionCreate, ActionRead, ActionUpdate, ActionTransition}
	readOnly      = []Action{ActionRead}
	readWrite     = []Action{ActionRead, ActionUpdate}
	createReadUpd = []Action{ActionCreate, ActionRead, ActionUpdate}
)

// rolePermissions is the role x resource x action table. Ownership is
// checked separately in owns.
var rolePermissions = map[Role]map[ResourceKind][]Action{
	RoleDoctor: {
		KindUser:          readWrite,
		KindPatient:       readOnly,
		KindDoctor:        readWrite,
		KindAppointment:   allActions,
		KindPrescription:  createReadUpd,
		KindLabResult:     createReadUpd,
		KindMedicalRecord: createReadUpd,
	},
	RoleNurse: {
		KindUser:          readWrite,
		KindPatient:       readOnly,
		KindDoctor:        readOnly,
		KindNurse:         readWrite,
		KindAppointment:   readOnly,
		KindPrescription:  readOnly,
		KindLabResult:     {ActionCreate, ActionRead},
		KindMedicalRecord: readOnly,
	},
	RolePatient: {
		KindUser:          readWrite,
		KindPatient:       readWrite,
		KindDoctor:        readOnly,
		KindAppointment:   allActions,
		KindPrescription:  readOnly,
		KindLabResult:     readOnly,
		KindBill:          readOnly,
		KindMedicalRecord: readOnly,
	},
}

// MedicalHistoryFields are the only Patient fields a patient may change.
var MedicalHistoryFields = []string{"allergies", "current_medications", "medical_conditions"}

var patientAppointmentFields = []string{"appointment_date", "appointment_time", "type", "reason"}

// Evaluator decides whether a principal may act on a resource. It is pure:
// callers supply the target's ownership references.
type Evaluator struct {
	enforcer *casbin.Enforcer
}

func NewEvaluator() (*Evaluator, error) {
	m, err := model.NewModelFromString(accessModel)
	if err != nil {
		return nil, fmt.Errorf("load access model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicy(string(RoleAdmin), "*", "*"); err != nil {
		return nil, fmt.Errorf("seed admin policy: %w", err)
	}
	for role, kinds := range rolePermissions {
		for kind, actions := range kinds {
			for _, act := range actions {
				if _, err := enforcer.AddPolicy(string(role), string(kind), string(act)); err != nil {
					return nil, fmt.Errorf("seed policy %s %s %s: %w", role, kind, act, err)
				}
			}
		}
	}
	return &Evaluator{enforcer: enforcer}, nil
}

// Permits consults only the role table.
func (e *Evaluator) Permits(role Role, kind ResourceKind, action Action) bool {
	if !role.Valid() {
		return false
	}
	ok, err := e.enforcer.Enforce(string(role), string(kind), string(action))
	return err == nil && ok
}

// CheckRole rejects a role that may never perform action on kind. Create
// operations call it before validating or defaulting their input.
func (e *Evaluator) CheckRole(p Principal, action Action, kind ResourceKind) error {
	if e.Permits(p.Role, kind, action) {
		return nil
	}
	return Decision{Reason: apperr.KindForbidden, action: action, kind: kind}.Err()
}

// Authorize evaluates, in order: existence, role permission, ownership.
func (e *Evaluator) Authorize(p Principal, action Action, kind ResourceKind, target Target) Decision {
	d := Decision{action: action, kind: kind}

	if target.typ == targetMissing {
		d.Reason = apperr.KindNotFound
		return d
	}
	if !e.Permits(p.Role, kind, action) {
		d.Reason = apperr.KindForbidden
		return d
	}
	if p.IsAdmin() {
		d.Allowed = true
		return d
	}

	switch target.typ {
	case targetCollection:
		scope, ok := scopeFor(p, kind)
		if !ok {
			d.Reason = apperr.KindForbidden
			return d
		}
		d.Scope = scope
	case targetRow:
		if !owns(p, kind, action, target.refs) {
			d.Reason = apperr.KindForbidden
			return d
		}
	}

	d.Allowed = true
	if p.Role == RolePatient {
		switch {
		case kind == KindPatient && action == ActionUpdate:
			d.WritableFields = MedicalHistoryFields
		case kind == KindAppointment && action == ActionUpdate:
			d.WritableFields = patientAppointmentFields
		case kind == KindAppointment && action == ActionTransition:
			d.AllowedStatuses = []string{"cancelled"}
		}
	}
	return d
}

func owns(p Principal, kind ResourceKind, action Action, refs Refs) bool {
	switch kind {
	case KindUser:
		return sameID(refs.UserID, &p.UserID)
	case KindDoctor:
		if action == ActionRead {
			return true
		}
		return p.Role == RoleDoctor && sameID(refs.DoctorID, p.DoctorID)
	case KindNurse:
		return p.Role == RoleNurse && sameID(refs.NurseID, p.NurseID)
	}

	switch p.Role {
	case RolePatient:
		return sameID(refs.PatientID, p.PatientID)
	case RoleDoctor:
		return sameID(refs.DoctorID, p.DoctorID)
	case RoleNurse:
		if kind == KindLabResult && action == ActionCreate {
			return refs.DoctorID == nil
		}
		if kind == KindMedicalRecord && refs.Confidential {
			return false
		}
		return action == ActionRead
	}
	return false
}

func scopeFor(p Principal, kind ResourceKind) (Scope, bool) {
	switch kind {
	case KindUser:
		uid := p.UserID
		return Scope{UserID: &uid}, true
	case KindDoctor:
		return Scope{}, true
	case KindNurse:
		return Scope{NurseID: p.NurseID}, p.NurseID != nil
	}

	switch p.Role {
	case RolePatient:
		return Scope{PatientID: p.PatientID}, p.PatientID != nil
	case RoleDoctor:
		return Scope{DoctorID: p.DoctorID}, p.DoctorID != nil
	case RoleNurse:
		return Scope{ExcludeConfidential: kind == KindMedicalRecord}, true
	}
	return Scope{}, false
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}
