/*
statement.go - Report projections over posted documents

PURPOSE:
  Derives the register (running balance), outstanding, and status views
  from a snapshot of posted documents. Pure and read-only: the projector
  never sorts and never mutates its input, so every view that feeds the
  same snapshot through here agrees on the derived figures.

ORDER SENSITIVITY:
  The running balance accumulates in the order given. Callers must supply
  documents in document-number or date order for the balance column to
  be meaningful.

SEE ALSO:
  - amounts.go: Totals feeding each row
  - store.go: ListPosted supplies the snapshot
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATEMENT ENTRIES AND ROWS
// =============================================================================

// StatementEntry is one posted document reduced to its ledger effect.
type StatementEntry struct {
	DocNo         string
	DocType       string
	DocDate       time.Time
	InvoiceNumber string
	LastAction    State
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// StatementRow is an entry with the cumulative balance attached.
type StatementRow struct {
	StatementEntry
	Balance decimal.Decimal
}

// StatementTotals is the trailing totals row.
type StatementTotals struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	NetBalance  decimal.Decimal
}

// EntryFromDocument reduces a posted invoice document to its statement
// effect: the invoice's final amount is owed to the vendor, so it lands
// on the credit side.
func EntryFromDocument(doc *InvoiceRequest) StatementEntry {
	totals := ComputeTotals(doc.Items)
	return StatementEntry{
		DocNo:         doc.DocNo,
		DocType:       doc.DocType,
		DocDate:       doc.DocDate,
		InvoiceNumber: doc.InvoiceNumber,
		LastAction:    doc.LastAction,
		Debit:         decimal.Zero,
		Credit:        totals.FinalAmount,
	}
}

// =============================================================================
// RUNNING BALANCE PROJECTION
// =============================================================================

// ProjectStatement walks the entries in the given order, accumulating
// balance += credit - debit per row, and computes the trailing totals
// (netBalance = totalDebit - totalCredit). Accumulation is unrounded;
// round at render time.
func ProjectStatement(entries []StatementEntry) ([]StatementRow, StatementTotals) {
	rows := make([]StatementRow, len(entries))
	running := decimal.Zero
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for i, e := range entries {
		running = running.Add(e.Credit).Sub(e.Debit)
		totalDebit = totalDebit.Add(e.Debit)
		totalCredit = totalCredit.Add(e.Credit)
		rows[i] = StatementRow{StatementEntry: e, Balance: running}
	}

	return rows, StatementTotals{
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		NetBalance:  totalDebit.Sub(totalCredit),
	}
}

// ProjectRegister builds the vendor register view from posted documents.
func ProjectRegister(docs []*InvoiceRequest) ([]StatementRow, StatementTotals) {
	entries := make([]StatementEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, EntryFromDocument(doc))
	}
	return ProjectStatement(entries)
}

// ProjectOutstanding builds the outstanding view: approved documents
// whose amounts remain open against the account.
func ProjectOutstanding(docs []*InvoiceRequest) ([]StatementRow, StatementTotals) {
	entries := make([]StatementEntry, 0, len(docs))
	for _, doc := range docs {
		if doc.LastAction != StateApproved {
			continue
		}
		entries = append(entries, EntryFromDocument(doc))
	}
	return ProjectStatement(entries)
}

// =============================================================================
// STATUS PROJECTION
// =============================================================================

// StatusRow is one document's workflow position plus derived totals, as
// shown on the status report.
type StatusRow struct {
	DocNo         string
	RefDocNo      string
	InvoiceNumber string
	DocDate       time.Time
	LastAction    State
	FlowLevel     FlowLevel
	Totals        ItemTotals
}

// ProjectStatus maps each posted document to its status row. Order is
// preserved from the input.
func ProjectStatus(docs []*InvoiceRequest) []StatusRow {
	rows := make([]StatusRow, len(docs))
	for i, doc := range docs {
		rows[i] = StatusRow{
			DocNo:         doc.DocNo,
			RefDocNo:      doc.RefDocNo,
			InvoiceNumber: doc.InvoiceNumber,
			DocDate:       doc.DocDate,
			LastAction:    doc.LastAction,
			FlowLevel:     doc.FlowLevel,
			Totals:        ComputeTotals(doc.Items).Rounded(),
		}
	}
	return rows
}
