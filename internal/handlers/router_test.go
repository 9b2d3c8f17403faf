package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/rentledger/api/internal/errors"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/middleware"
	"github.com/stwalsh4118/rentledger/api/internal/notify"
	"github.com/stwalsh4118/rentledger/api/internal/repository/memstore"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

const testCallbackToken = "s3cret"

type testAPI struct {
	router *gin.Engine
	owner  uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	log := logger.New("test", logger.WithOutput(io.Discard))
	now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	opts := services.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	}
	dispatcher := notify.NewDispatcher(store.Repos().Notifications, nil, log)

	svc := Services{
		Properties:    services.NewPropertyService(store, log, opts),
		Allocation:    services.NewAllocationService(store, log, opts),
		Tenants:       services.NewTenantService(store, log, opts),
		Payments:      services.NewReconciliationService(store, dispatcher, log, opts),
		Billing:       services.NewBillingService(store, dispatcher, log, opts, 2),
		Notifications: services.NewNotificationService(store),
	}
	router := NewRouter(RouterConfig{
		Env:           "test",
		Storage:       "memory",
		CORSOrigins:   []string{"http://localhost:3000"},
		CallbackToken: testCallbackToken,
		Location:      time.UTC,
	}, store, svc, log)

	return &testAPI{router: router, owner: uuid.New()}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierrors.ErrorResponse
	decode(t, w, &resp)
	return resp.Error.Code
}

func (a *testAPI) createProperty(t *testing.T, prefix, paybill string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/properties", map[string]interface{}{
		"ownerId":       a.owner.String(),
		"name":          prefix + " Court",
		"ownerPhone":    "+254700000001",
		"paybillNumber": paybill,
		"billingPrefix": prefix,
		"unitTypes": []map[string]interface{}{
			{"type": "1br", "startLabel": "A1", "endLabel": "A3", "rentAmount": 20000},
			{"type": "2br", "startLabel": "B1", "endLabel": "B2", "rentAmount": "30000.00"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var detail struct {
		Property struct {
			ID         string `json:"id"`
			TotalUnits int    `json:"totalUnits"`
		} `json:"property"`
		Units []struct {
			BillingReference string `json:"billingReference"`
		} `json:"units"`
	}
	decode(t, w, &detail)
	assert.Equal(t, 5, detail.Property.TotalUnits)
	assert.Equal(t, prefix+"#A1", detail.Units[0].BillingReference)
	return detail.Property.ID
}

type tenantBody struct {
	ID               string `json:"id"`
	UnitNumber       string `json:"unitNumber"`
	BillingReference string `json:"billingReference"`
	PaymentStatus    string `json:"paymentStatus"`
	AccountBalance   string `json:"accountBalance"`
	IsActive         bool   `json:"isActive"`
}

func (a *testAPI) onboard(t *testing.T, propertyID, unitType string) tenantBody {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/tenants", map[string]interface{}{
		"ownerId":    a.owner.String(),
		"propertyId": propertyID,
		"name":       "Achieng Otieno",
		"phone":      "+254711000000",
		"unitType":   unitType,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var tenant tenantBody
	decode(t, w, &tenant)
	return tenant
}

func mpesaBody(transID, billRef, shortCode, amount string) map[string]interface{} {
	return map[string]interface{}{
		"TransactionType":   "Pay Bill",
		"TransID":           transID,
		"TransTime":         "20250303121500",
		"TransAmount":       amount,
		"BusinessShortCode": shortCode,
		"BillRefNumber":     billRef,
		"MSISDN":            "254711000000",
		"FirstName":         "Achieng",
	}
}

func TestRouter_PropertyEndpoints(t *testing.T) {
	api := newTestAPI(t)
	id := api.createProperty(t, "SUN", "600100")

	t.Run("get", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/properties/"+id, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown property", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/properties/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apierrors.ErrNotFound, errorCode(t, w))
	})

	t.Run("malformed id", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/properties/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrBadRequest, errorCode(t, w))
	})

	t.Run("missing fields", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/properties", map[string]interface{}{"name": "Nameless"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrValidation, errorCode(t, w))
	})

	t.Run("overlapping ranges", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/properties", map[string]interface{}{
			"ownerId":       api.owner.String(),
			"name":          "Overlap",
			"paybillNumber": "600300",
			"billingPrefix": "OVR",
			"unitTypes": []map[string]interface{}{
				{"type": "1br", "startLabel": "A1", "endLabel": "A5", "rentAmount": 100},
				{"type": "2br", "startLabel": "A3", "endLabel": "A9", "rentAmount": 200},
			},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("duplicate billing prefix", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/properties", map[string]interface{}{
			"ownerId":       uuid.NewString(),
			"name":          "Copy",
			"paybillNumber": "600400",
			"billingPrefix": "SUN",
			"unitTypes": []map[string]interface{}{
				{"type": "1br", "startLabel": "A1", "endLabel": "A1", "rentAmount": 100},
			},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apierrors.ErrConflict, errorCode(t, w))
	})

	t.Run("update unit types", func(t *testing.T) {
		w := api.do(t, http.MethodPut, "/api/v1/properties/"+id+"/unit-types", map[string]interface{}{
			"unitTypes": []map[string]interface{}{
				{"type": "1br", "startLabel": "A1", "endLabel": "A6", "rentAmount": 21000},
			},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var detail struct {
			Property struct {
				TotalUnits int `json:"totalUnits"`
			} `json:"property"`
		}
		decode(t, w, &detail)
		assert.Equal(t, 6, detail.Property.TotalUnits)
	})

	t.Run("delete", func(t *testing.T) {
		w := api.do(t, http.MethodDelete, "/api/v1/properties/"+id, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = api.do(t, http.MethodGet, "/api/v1/properties/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouter_TenantLifecycle(t *testing.T) {
	api := newTestAPI(t)
	sun := api.createProperty(t, "SUN", "600100")
	moon := api.createProperty(t, "MOON", "600200")

	tenant := api.onboard(t, sun, "1br")
	assert.Equal(t, "A1", tenant.UnitNumber)
	assert.Equal(t, "pending", tenant.PaymentStatus)

	t.Run("list by owner", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/tenants?ownerId="+api.owner.String()+"&active=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, w, &resp)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("list requires owner", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/tenants", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no units of type", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/tenants", map[string]interface{}{
			"ownerId":    api.owner.String(),
			"propertyId": sun,
			"name":       "Late Comer",
			"unitType":   "penthouse",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("release of an occupied unit is refused", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/properties/"+sun+"/units/A1/release", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("transfer", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/transfer", map[string]interface{}{
			"newPropertyId": moon,
			"newUnitType":   "2br",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var moved tenantBody
		decode(t, w, &moved)
		assert.Equal(t, "MOON#B1", moved.BillingReference)
	})

	t.Run("release vacant unit is a no-op", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/properties/"+sun+"/units/A1/release", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("move out", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/move-out", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var gone tenantBody
		decode(t, w, &gone)
		assert.Equal(t, "moved_out", gone.PaymentStatus)
		assert.False(t, gone.IsActive)

		w = api.do(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/move-out", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRouter_BillingAndPayments(t *testing.T) {
	api := newTestAPI(t)
	sun := api.createProperty(t, "SUN", "600100")
	tenant := api.onboard(t, sun, "1br")

	w := api.do(t, http.MethodPost, "/api/v1/billing/sweep", map[string]interface{}{"month": "2025-03"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sweep services.SweepReport
	decode(t, w, &sweep)
	assert.Equal(t, 1, sweep.Billed)

	t.Run("callback without token", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/payments/mpesa/callback", mpesaBody("QK1", "SUN#A1", "600100", "14000.00"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("callback applies payment once", func(t *testing.T) {
		body := mpesaBody("QK2", "SUN#A1", "600100", "14000.00")
		for i := 0; i < 2; i++ {
			w := api.do(t, http.MethodPost, "/api/v1/payments/mpesa/callback", body, middleware.CallbackTokenHeader, testCallbackToken)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var ack MpesaAck
			decode(t, w, &ack)
			assert.Equal(t, 0, ack.ResultCode)
		}

		w := api.do(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID, nil)
		var got tenantBody
		decode(t, w, &got)
		assert.Equal(t, "-6000", got.AccountBalance)
		assert.Equal(t, "partial", got.PaymentStatus)
	})

	t.Run("callback for another paybill", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/payments/mpesa/callback", mpesaBody("QK3", "SUN#A1", "999999", "100"), middleware.CallbackTokenHeader, testCallbackToken)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("callback with bad amount", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/payments/mpesa/callback", mpesaBody("QK4", "SUN#A1", "600100", "lots"), middleware.CallbackTokenHeader, testCallbackToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("simulated payment", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/payments/simulate", map[string]interface{}{
			"tenantId": tenant.ID,
			"amount":   "6000",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result struct {
			Payment struct {
				Classification string `json:"classification"`
			} `json:"payment"`
		}
		decode(t, w, &result)
		assert.Equal(t, "exact", result.Payment.Classification)
	})

	t.Run("zero payment rejected", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/payments/simulate", map[string]interface{}{
			"tenantId": tenant.ID,
			"amount":   "0",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apierrors.ErrValidation, errorCode(t, w))
	})

	t.Run("payments and audit", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID+"/payments", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var payments struct {
			Count int `json:"count"`
		}
		decode(t, w, &payments)
		assert.Equal(t, 2, payments.Count)

		w = api.do(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID+"/audit", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var audit struct {
			Consistent bool `json:"consistent"`
		}
		decode(t, w, &audit)
		assert.True(t, audit.Consistent)
	})

	t.Run("overdue pass leaves paid tenant alone", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/billing/overdue", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var report services.OverdueReport
		decode(t, w, &report)
		assert.Equal(t, 0, report.Marked)
	})

	t.Run("invalid month", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/billing/sweep", map[string]interface{}{"month": "2025/3"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("owner notifications", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/owners/"+api.owner.String()+"/notifications?limit=10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, w, &resp)
		// one reminder and two payments
		assert.Equal(t, 3, resp.Count)
	})
}

func TestRouter_HealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info InfoResponse
	decode(t, w, &info)
	assert.Equal(t, "memory", info.Storage)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
