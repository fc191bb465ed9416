package sehatauth

import (
	"context"
	"errors"
	"strconv"
)

// SubmitIntake validates an OPD form, allocates the next registration number
// and stores the record. A number allocated for a record that then fails to
// store is never reused; the error wraps ErrIntakePersistFailed.
func (e *Engine) SubmitIntake(ctx context.Context, req IntakeRequest) (*IntakeRecord, error) {
	if e == nil || e.intake == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.intake.Submit(ctx, req)
	if err != nil {
		mapped := e.storeFailure("opd_register", "", req.Email, err)
		if !errors.Is(mapped, ErrValidationFailed) {
			e.metricInc(MetricIntakeFailed)
		}
		e.emitAudit(ctx, auditEventIntakeSubmitted, false, "", "", req.Email, mapped, nil)
		return nil, mapped
	}

	e.metricInc(MetricIntakeSubmitted)
	e.emitAudit(ctx, auditEventIntakeSubmitted, true, "", "", rec.Email, nil, func() map[string]string {
		return map[string]string{
			"registration_id": rec.RegistrationID,
			"age":             strconv.Itoa(rec.Age),
		}
	})
	return rec, nil
}

// LatestIntake returns the newest OPD registration filed under email.
func (e *Engine) LatestIntake(ctx context.Context, email string) (*IntakeRecord, error) {
	if e == nil || e.intake == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.intake.LatestByEmail(ctx, email)
	if err != nil {
		return nil, e.storeFailure("opd_profile", "", email, err)
	}
	return rec, nil
}
