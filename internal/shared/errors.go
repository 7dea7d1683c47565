package shared

import (
	"errors"
	"net/http"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/platform/httpx"
	"github.com/caseledger/caseledger/internal/records"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates a disabled actor attempted to act.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// RespondError classifies err and writes the matching problem response. Records
// outside the actor's scope surface as not found.
func RespondError(w http.ResponseWriter, err error) {
	var denied *access.DeniedError
	var invalid *records.ValidationError
	switch {
	case errors.As(err, &denied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", denied.Notice())
	case errors.As(err, &invalid):
		httpx.JSON(w, http.StatusBadRequest, httpx.ValidationProblem(invalid.Fields))
	case errors.Is(err, records.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "السجل غير موجود")
	case errors.Is(err, records.ErrUnavailable):
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "تعذر الوصول إلى مخزن السجلات")
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "اسم المستخدم أو كلمة المرور غير صحيحة")
	case errors.Is(err, ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "تمت معالجة هذا الطلب مسبقاً")
	case errors.Is(err, ErrAccountDisabled):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "الحساب معطل")
	default:
		httpx.RespondError(w, err)
	}
}
