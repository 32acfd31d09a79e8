package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/logiport/logiport/pkg/db/pagination"

	transactiondomain "github.com/logiport/logiport/internal/transaction/domain"
)

type createTransactionRequest struct {
	TransactionNo     string   `json:"transaction_no"`
	Status            string   `json:"status"`
	TransactionType   string   `json:"transaction_type"`
	TransactionDate   string   `json:"transaction_date"`
	ClientID          *int64   `json:"client_id"`
	ExporterCompanyID *int64   `json:"exporter_company_id"`
	ImporterCompanyID *int64   `json:"importer_company_id"`
	OriginCountryID   *int64   `json:"origin_country_id"`
	DestCountryID     *int64   `json:"dest_country_id"`
	CurrencyID        *int64   `json:"currency_id"`
	Notes             *string  `json:"notes"`
	TotalAmount       *float64 `json:"total_amount"`
}

func (s *Server) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	transactionDate, err := parseOptionalTime(req.TransactionDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_date", "invalid_transaction_date", "invalid transaction_date"))
		return
	}

	resp, err := s.transactionSvc.Create(c.Request.Context(), transactiondomain.CreateTransactionRequest{
		TransactionNo:     strings.TrimSpace(req.TransactionNo),
		Status:            transactiondomain.Status(strings.TrimSpace(req.Status)),
		TransactionType:   transactiondomain.TransactionType(strings.TrimSpace(req.TransactionType)),
		TransactionDate:   transactionDate,
		ClientID:          req.ClientID,
		ExporterCompanyID: req.ExporterCompanyID,
		ImporterCompanyID: req.ImporterCompanyID,
		OriginCountryID:   req.OriginCountryID,
		DestCountryID:     req.DestCountryID,
		CurrencyID:        req.CurrencyID,
		Notes:             req.Notes,
		TotalAmount:       req.TotalAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ClientID        string `form:"client_id"`
		Status          string `form:"status"`
		TransactionType string `form:"transaction_type"`
		StartDate       string `form:"start_date"`
		EndDate         string `form:"end_date"`
		Search          string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientID, err := parseOptionalInt64(query.ClientID)
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}

	startDate, err := parseOptionalTime(query.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}

	endDate, err := parseOptionalTime(query.EndDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.transactionSvc.List(c.Request.Context(), transactiondomain.ListTransactionRequest{
		Pagination:      query.Pagination,
		ClientID:        clientID,
		Status:          transactiondomain.Status(strings.TrimSpace(query.Status)),
		TransactionType: transactiondomain.TransactionType(strings.TrimSpace(query.TransactionType)),
		StartDate:       startDate,
		EndDate:         endDate,
		Search:          strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTransactionByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.transactionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateTransactionRequest struct {
	TransactionType   *string  `json:"transaction_type"`
	TransactionDate   *string  `json:"transaction_date"`
	ClientID          *int64   `json:"client_id"`
	ExporterCompanyID *int64   `json:"exporter_company_id"`
	ImporterCompanyID *int64   `json:"importer_company_id"`
	OriginCountryID   *int64   `json:"origin_country_id"`
	DestCountryID     *int64   `json:"dest_country_id"`
	CurrencyID        *int64   `json:"currency_id"`
	Notes             *string  `json:"notes"`
	TotalAmount       *float64 `json:"total_amount"`
}

func (s *Server) UpdateTransaction(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req updateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var transactionType *transactiondomain.TransactionType
	if req.TransactionType != nil {
		tt := transactiondomain.TransactionType(strings.TrimSpace(*req.TransactionType))
		transactionType = &tt
	}

	var transactionDate *time.Time
	if req.TransactionDate != nil {
		transactionDate, err = parseOptionalTime(*req.TransactionDate, false)
		if err != nil {
			AbortWithError(c, newValidationError("transaction_date", "invalid_transaction_date", "invalid transaction_date"))
			return
		}
	}

	resp, err := s.transactionSvc.Update(c.Request.Context(), id, transactiondomain.UpdateTransactionRequest{
		TransactionType:   transactionType,
		TransactionDate:   transactionDate,
		ClientID:          req.ClientID,
		ExporterCompanyID: req.ExporterCompanyID,
		ImporterCompanyID: req.ImporterCompanyID,
		OriginCountryID:   req.OriginCountryID,
		DestCountryID:     req.DestCountryID,
		CurrencyID:        req.CurrencyID,
		Notes:             req.Notes,
		TotalAmount:       req.TotalAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTransaction(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	if err := s.transactionSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) ActivateTransaction(c *gin.Context) {
	s.changeStatus(c, s.transactionSvc.Activate)
}

func (s *Server) CloseTransaction(c *gin.Context) {
	s.changeStatus(c, s.transactionSvc.Close)
}

func (s *Server) ReopenTransaction(c *gin.Context) {
	s.changeStatus(c, s.transactionSvc.Reopen)
}

func (s *Server) ArchiveTransaction(c *gin.Context) {
	s.changeStatus(c, s.transactionSvc.Archive)
}

func (s *Server) changeStatus(c *gin.Context, apply func(context.Context, snowflake.ID) (*transactiondomain.Transaction, error)) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := apply(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
