// Package httpapi 提供客户服务的 HTTP 交付层。
//
// 该层是端口的薄适配器：只做请求解析、DTO 转换与错误码映射，
// 校验与业务规则全部由 customer 包承担。
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"custman/customer"
	"custman/errors"
	"custman/logging"
	"custman/projection"
)

// Handler 客户 HTTP 处理器
type Handler struct {
	service   customer.ICustomerService
	readModel *projection.ReadModel
	logger    logging.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(service customer.ICustomerService, readModel *projection.ReadModel) *Handler {
	return &Handler{
		service:   service,
		readModel: readModel,
		logger:    logging.ComponentLogger("httpapi"),
	}
}

// Register 注册路由
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /customers", h.createCustomer)
	mux.HandleFunc("GET /customers", h.listCustomers)
	mux.HandleFunc("GET /customers/{id}", h.getCustomer)
	mux.HandleFunc("PATCH /customers/{id}", h.updateCustomer)
	mux.HandleFunc("DELETE /customers/{id}", h.deleteCustomer)
}

// dateOnly 支持 "2006-01-02" 与 RFC3339 两种日期格式
type dateOnly struct {
	time.Time
}

func (d *dateOnly) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type createCustomerRequest struct {
	FirstName         string   `json:"firstName"`
	LastName          string   `json:"lastName"`
	DateOfBirth       dateOnly `json:"dateOfBirth"`
	PhoneNumber       *string  `json:"phoneNumber,omitempty"`
	Email             *string  `json:"email,omitempty"`
	BankAccountNumber *string  `json:"bankAccountNumber,omitempty"`
}

type updateCustomerRequest struct {
	FirstName         *string   `json:"firstName,omitempty"`
	LastName          *string   `json:"lastName,omitempty"`
	DateOfBirth       *dateOnly `json:"dateOfBirth,omitempty"`
	PhoneNumber       *string   `json:"phoneNumber,omitempty"`
	Email             *string   `json:"email,omitempty"`
	BankAccountNumber *string   `json:"bankAccountNumber,omitempty"`
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.NewValidationError("请求体格式错误"))
		return
	}

	id, err := h.service.Create(r.Context(), customer.CreateCustomerCommand{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		DateOfBirth:       req.DateOfBirth.Time,
		PhoneNumber:       req.PhoneNumber,
		Email:             req.Email,
		BankAccountNumber: req.BankAccountNumber,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.NewValidationError("请求体格式错误"))
		return
	}

	cmd := customer.UpdateCustomerCommand{
		CustomerID:        id,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PhoneNumber:       req.PhoneNumber,
		Email:             req.Email,
		BankAccountNumber: req.BankAccountNumber,
	}
	if req.DateOfBirth != nil {
		cmd.DateOfBirth = &req.DateOfBirth.Time
	}

	if err := h.service.Update(r.Context(), cmd); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, nil)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), customer.DeleteCustomerCommand{CustomerID: id}); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, nil)
}

// getCustomer 优先走读模型；读模型未配置时回退为事件重放
func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if h.readModel != nil {
		view, err := h.readModel.GetByID(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeSuccess(w, http.StatusOK, view)
		return
	}

	aggregate, err := h.service.Load(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, http.StatusOK, aggregateToView(aggregate))
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	if h.readModel == nil {
		h.writeError(w, r, errors.NewError(errors.ErrCodeInternal, "读模型未配置"))
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	views, err := h.readModel.List(r.Context(), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if views == nil {
		views = []*projection.CustomerView{}
	}
	h.writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, errors.NewValidationError("客户ID必须为正整数"))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func aggregateToView(c *customer.Customer) *projection.CustomerView {
	return &projection.CustomerView{
		ID:                c.GetID(),
		FirstName:         c.FirstName(),
		LastName:          c.LastName(),
		DateOfBirth:       c.DateOfBirth(),
		PhoneNumber:       c.PhoneNumber(),
		Email:             c.Email(),
		BankAccountNumber: c.BankAccountNumber(),
		IsDeleted:         c.IsDeleted(),
		Version:           uint64(c.GetVersion()),
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

// writeError 将应用错误映射为 HTTP 状态码
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err) || errors.IsErrorCode(err, errors.ErrCodeInvalidInput):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsConflict(err) || errors.IsConcurrency(err):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String("error_code", string(errors.GetErrorCode(err))),
			logging.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": err.Error(),
	})
}
