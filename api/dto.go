/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Inbound payloads carry go-playground/validator struct tags; handlers
  run the validator before touching the engine, so the engine only ever
  sees well-formed intents.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain model these map onto
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-engine/engine"
)

// =============================================================================
// ACTION REQUEST / RESPONSE
// =============================================================================

// ActionRequest is the inbound lifecycle action call.
type ActionRequest struct {
	Action      string       `json:"action" validate:"required,oneof=DRAFT SUBMIT APPROVE REJECT SENTBACK"`
	ActorID     string       `json:"actorId" validate:"required"`
	Remark      string       `json:"remark,omitempty"`
	TargetLevel *int         `json:"targetLevel,omitempty" validate:"omitempty,gte=0,lte=2"`
	Document    *DocumentDTO `json:"document" validate:"required"`
}

// ActionResponse reports the outcome of a lifecycle action.
type ActionResponse struct {
	OK        bool   `json:"ok"`
	DocNo     string `json:"docNo,omitempty"`
	NewState  string `json:"newState,omitempty"`
	FlowLevel int    `json:"flowLevel,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// =============================================================================
// DOCUMENT
// =============================================================================

// DocumentDTO represents an invoice request document on the wire.
type DocumentDTO struct {
	CompanyCode   string          `json:"companyCode"`
	DocNo         string          `json:"docNo,omitempty"`
	DocType       string          `json:"docType,omitempty"`
	DocDate       string          `json:"docDate,omitempty"`
	RefDocNo      string          `json:"refDocNo,omitempty"`
	PdoType       string          `json:"pdoType,omitempty"`
	AcCode        string          `json:"acCode"`
	DivCode       string          `json:"divCode,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	InvoiceDate   string          `json:"invoiceDate,omitempty"`
	CurrCode      string          `json:"currCode,omitempty"`
	ExRate        decimal.Decimal `json:"exRate"`
	Remarks       string          `json:"remarks,omitempty"`
	LastAction    string          `json:"lastAction,omitempty"`
	FlowLevel     int             `json:"flowLevel"`
	EditUser      string          `json:"editUser,omitempty"`
	Version       int             `json:"version,omitempty"`
	Items         []LineItemDTO   `json:"items"`
	Totals        *TotalsDTO      `json:"totals,omitempty"`
}

// LineItemDTO represents one document line. The derived amount fields
// are populated on responses only; inbound values are ignored and
// recomputed.
type LineItemDTO struct {
	SerialNo    int             `json:"serialNo"`
	Description string          `json:"description,omitempty"`
	OriginalQty int64           `json:"originalQty"`
	PdoType     string          `json:"pdoType,omitempty"`
	Qty         int64           `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	TaxPercent1 decimal.Decimal `json:"taxComponentPercent1"`
	CurrCode    string          `json:"currCode,omitempty"`
	ExRate      decimal.Decimal `json:"exRate"`

	Amount              *decimal.Decimal `json:"amount,omitempty"`
	BaseAmount          *decimal.Decimal `json:"baseAmount,omitempty"`
	TaxLocalAmount      *decimal.Decimal `json:"taxLocalAmount,omitempty"`
	TaxComponentAmount1 *decimal.Decimal `json:"taxComponentAmount1,omitempty"`
	FinalAmount         *decimal.Decimal `json:"finalAmount,omitempty"`
}

// TotalsDTO is the totals row, carrying both the signed values and the
// bracket-formatted display strings.
type TotalsDTO struct {
	Qty                 int64           `json:"qty"`
	Amount              decimal.Decimal `json:"amount"`
	BaseAmount          decimal.Decimal `json:"baseAmount"`
	TaxLocalAmount      decimal.Decimal `json:"taxLocalAmount"`
	TaxComponentAmount1 decimal.Decimal `json:"taxComponentAmount1"`
	FinalAmount         decimal.Decimal `json:"finalAmount"`
	FinalAmountDisplay  string          `json:"finalAmountDisplay"`
}

// =============================================================================
// HISTORY / REPORTS
// =============================================================================

// HistoryEntryDTO is one send-back/reject audit record.
type HistoryEntryDTO struct {
	Action    string `json:"action"`
	Remark    string `json:"remark"`
	Actor     string `json:"actor"`
	FromLevel int    `json:"fromLevel"`
	ToLevel   int    `json:"toLevel"`
	At        string `json:"at"`
	Display   string `json:"display"`
}

// StatementRowDTO is one register/outstanding row with the running
// balance attached. Display fields use the bracket convention for
// negatives.
type StatementRowDTO struct {
	DocNo          string          `json:"docNo"`
	DocType        string          `json:"docType,omitempty"`
	DocDate        string          `json:"docDate,omitempty"`
	InvoiceNumber  string          `json:"invoiceNumber,omitempty"`
	LastAction     string          `json:"lastAction"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Balance        decimal.Decimal `json:"balance"`
	DebitDisplay   string          `json:"debitDisplay"`
	CreditDisplay  string          `json:"creditDisplay"`
	BalanceDisplay string          `json:"balanceDisplay"`
}

// StatementTotalsDTO is the trailing totals row.
type StatementTotalsDTO struct {
	TotalDebit        decimal.Decimal `json:"totalDebit"`
	TotalCredit       decimal.Decimal `json:"totalCredit"`
	NetBalance        decimal.Decimal `json:"netBalance"`
	NetBalanceDisplay string          `json:"netBalanceDisplay"`
}

// StatementResponse wraps a report view.
type StatementResponse struct {
	Rows   []StatementRowDTO  `json:"rows"`
	Totals StatementTotalsDTO `json:"totals"`
}

// StatusRowDTO is one status-report row.
type StatusRowDTO struct {
	DocNo         string          `json:"docNo"`
	RefDocNo      string          `json:"refDocNo,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	DocDate       string          `json:"docDate,omitempty"`
	LastAction    string          `json:"lastAction"`
	FlowLevel     int             `json:"flowLevel"`
	FinalAmount   decimal.Decimal `json:"finalAmount"`
}

// RefItemsResponse returns a reference document's lines ready to seed a
// fresh draft.
type RefItemsResponse struct {
	RefDocNo string        `json:"refDocNo"`
	PdoType  string        `json:"pdoType"`
	Items    []LineItemDTO `json:"items"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDocument(dto *DocumentDTO) *engine.InvoiceRequest {
	doc := &engine.InvoiceRequest{
		CompanyCode:   dto.CompanyCode,
		DocNo:         dto.DocNo,
		DocType:       dto.DocType,
		DocDate:       parseDate(dto.DocDate),
		RefDocNo:      dto.RefDocNo,
		PdoType:       engine.PdoType(dto.PdoType),
		AcCode:        dto.AcCode,
		DivCode:       dto.DivCode,
		InvoiceNumber: dto.InvoiceNumber,
		InvoiceDate:   dto.InvoiceDate,
		CurrCode:      dto.CurrCode,
		ExRate:        dto.ExRate,
		Remarks:       dto.Remarks,
		Version:       dto.Version,
	}
	for _, item := range dto.Items {
		doc.Items = append(doc.Items, engine.LineItem{
			SerialNo:    item.SerialNo,
			Description: item.Description,
			OriginalQty: item.OriginalQty,
			PdoType:     engine.PdoType(item.PdoType),
			Qty:         item.Qty,
			Price:       item.Price,
			TaxPercent1: item.TaxPercent1,
			CurrCode:    item.CurrCode,
			ExRate:      item.ExRate,
		})
	}
	return doc
}

func fromDocument(doc *engine.InvoiceRequest) *DocumentDTO {
	dto := &DocumentDTO{
		CompanyCode:   doc.CompanyCode,
		DocNo:         doc.DocNo,
		DocType:       doc.DocType,
		DocDate:       formatDate(doc.DocDate),
		RefDocNo:      doc.RefDocNo,
		PdoType:       string(doc.PdoType),
		AcCode:        doc.AcCode,
		DivCode:       doc.DivCode,
		InvoiceNumber: doc.InvoiceNumber,
		InvoiceDate:   doc.InvoiceDate,
		CurrCode:      doc.CurrCode,
		ExRate:        doc.ExRate,
		Remarks:       doc.Remarks,
		LastAction:    string(doc.LastAction),
		FlowLevel:     int(doc.FlowLevel),
		EditUser:      doc.EditUser,
		Version:       doc.Version,
		Items:         make([]LineItemDTO, 0, len(doc.Items)),
	}

	for _, item := range doc.Items {
		la := engine.ComputeLine(item)
		dto.Items = append(dto.Items, LineItemDTO{
			SerialNo:            item.SerialNo,
			Description:         item.Description,
			OriginalQty:         item.OriginalQty,
			PdoType:             string(item.PdoType),
			Qty:                 item.Qty,
			Price:               item.Price,
			TaxPercent1:         item.TaxPercent1,
			CurrCode:            item.CurrCode,
			ExRate:              item.ExRate,
			Amount:              &la.Amount,
			BaseAmount:          &la.BaseAmount,
			TaxLocalAmount:      &la.TaxLocalAmount,
			TaxComponentAmount1: &la.TaxComponentAmount1,
			FinalAmount:         &la.FinalAmount,
		})
	}

	totals := engine.ComputeTotals(doc.Items).Rounded()
	dto.Totals = &TotalsDTO{
		Qty:                 totals.Qty,
		Amount:              totals.Amount,
		BaseAmount:          totals.BaseAmount,
		TaxLocalAmount:      totals.TaxLocalAmount,
		TaxComponentAmount1: totals.TaxComponentAmount1,
		FinalAmount:         totals.FinalAmount,
		FinalAmountDisplay:  engine.FormatAmount(totals.FinalAmount),
	}
	return dto
}

func fromStatement(rows []engine.StatementRow, totals engine.StatementTotals) StatementResponse {
	resp := StatementResponse{Rows: make([]StatementRowDTO, 0, len(rows))}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, StatementRowDTO{
			DocNo:          row.DocNo,
			DocType:        row.DocType,
			DocDate:        formatDate(row.DocDate),
			InvoiceNumber:  row.InvoiceNumber,
			LastAction:     string(row.LastAction),
			Debit:          row.Debit.Round(engine.DisplayPlaces),
			Credit:         row.Credit.Round(engine.DisplayPlaces),
			Balance:        row.Balance.Round(engine.DisplayPlaces),
			DebitDisplay:   engine.FormatAmount(row.Debit),
			CreditDisplay:  engine.FormatAmount(row.Credit),
			BalanceDisplay: engine.FormatAmount(row.Balance),
		})
	}
	resp.Totals = StatementTotalsDTO{
		TotalDebit:        totals.TotalDebit.Round(engine.DisplayPlaces),
		TotalCredit:       totals.TotalCredit.Round(engine.DisplayPlaces),
		NetBalance:        totals.NetBalance.Round(engine.DisplayPlaces),
		NetBalanceDisplay: engine.FormatAmount(totals.NetBalance),
	}
	return resp
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}
