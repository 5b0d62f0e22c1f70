/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements engine.DocumentStore, engine.MembershipStore and
  engine.RefDocStore using SQLite. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  documents:          Invoice request headers + workflow position
  document_items:     Line items (reference snapshot + editable qty)
  document_history:   Append-only send-back/reject audit trail
  approver_levels:    Level -> login-id membership rows
  doc_sequence:       Per-company document number sequence
  ref_documents:      Reference documents feeding fresh drafts

CONCURRENCY:
  Save enforces an optimistic version check: UPDATE ... WHERE version = ?
  affecting zero rows means someone else changed the document and the
  caller gets engine.ErrConflict. A sync.RWMutex guards the connection;
  with PostgreSQL, database-level concurrency control replaces it.

APPEND-ONLY HISTORY:
  document_history has no UPDATE or DELETE path. A transition and its
  history entry commit in the same database transaction.

WAL MODE:
  SQLite is opened with WAL for better read concurrency and crash
  recovery.

USAGE:
  st, err := sqlite.New("./data/invoices.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  lc := engine.NewLifecycle(st, st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool instead.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-engine/engine"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_no TEXT PRIMARY KEY,
		company_code TEXT NOT NULL,
		doc_type TEXT,
		doc_date TEXT,
		ref_doc_no TEXT,
		pdo_type TEXT,
		ac_code TEXT NOT NULL,
		div_code TEXT,
		invoice_number TEXT,
		invoice_date TEXT,
		curr_code TEXT,
		ex_rate TEXT NOT NULL DEFAULT '0',
		remarks TEXT,
		last_action TEXT NOT NULL,
		flow_level INTEGER NOT NULL DEFAULT 0,
		sent_back_from INTEGER NOT NULL DEFAULT 0,
		edit_user TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Inbox query hot path
	CREATE INDEX IF NOT EXISTS idx_documents_action_level
		ON documents(last_action, flow_level);
	-- Worklist and report queries
	CREATE INDEX IF NOT EXISTS idx_documents_ac_code
		ON documents(ac_code, last_action);

	CREATE TABLE IF NOT EXISTS document_items (
		doc_no TEXT NOT NULL REFERENCES documents(doc_no),
		serial_no INTEGER NOT NULL,
		description TEXT,
		original_qty INTEGER NOT NULL,
		pdo_type TEXT,
		qty INTEGER NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		tax_pct_1 TEXT NOT NULL DEFAULT '0',
		curr_code TEXT,
		ex_rate TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (doc_no, serial_no)
	);

	-- Append-only: no UPDATE or DELETE path exists for this table.
	CREATE TABLE IF NOT EXISTS document_history (
		id TEXT PRIMARY KEY,
		doc_no TEXT NOT NULL,
		action TEXT NOT NULL,
		remark TEXT,
		actor TEXT NOT NULL,
		from_level INTEGER NOT NULL,
		to_level INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_doc_no
		ON document_history(doc_no, created_at);

	CREATE TABLE IF NOT EXISTS approver_levels (
		level INTEGER NOT NULL,
		login_id TEXT NOT NULL,
		PRIMARY KEY (level, login_id)
	);

	CREATE TABLE IF NOT EXISTS doc_sequence (
		company_code TEXT PRIMARY KEY,
		next_no INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ref_documents (
		ref_doc_no TEXT PRIMARY KEY,
		pdo_type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ref_document_items (
		ref_doc_no TEXT NOT NULL REFERENCES ref_documents(ref_doc_no),
		serial_no INTEGER NOT NULL,
		description TEXT,
		qty INTEGER NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		tax_pct_1 TEXT NOT NULL DEFAULT '0',
		curr_code TEXT,
		ex_rate TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (ref_doc_no, serial_no)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// Save persists the document, assigning a document number on first
// persist, and appends the history entry atomically.
func (s *Store) Save(ctx context.Context, doc *engine.InvoiceRequest, entry *engine.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	docNo := doc.DocNo

	if docNo == "" {
		docNo, err = s.nextDocNo(ctx, tx, doc.CompanyCode)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (
				doc_no, company_code, doc_type, doc_date, ref_doc_no, pdo_type,
				ac_code, div_code, invoice_number, invoice_date, curr_code, ex_rate,
				remarks, last_action, flow_level, sent_back_from, edit_user,
				version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			docNo, doc.CompanyCode, doc.DocType, formatDate(doc.DocDate), doc.RefDocNo,
			string(doc.PdoType), doc.AcCode, doc.DivCode, doc.InvoiceNumber, doc.InvoiceDate,
			doc.CurrCode, doc.ExRate.String(), doc.Remarks, string(doc.LastAction),
			int(doc.FlowLevel), int(doc.SentBackFrom), doc.EditUser, now, now)
		if err != nil {
			return "", err
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET
				doc_type = ?, doc_date = ?, ref_doc_no = ?, pdo_type = ?,
				div_code = ?, invoice_number = ?, invoice_date = ?, curr_code = ?,
				ex_rate = ?, remarks = ?, last_action = ?, flow_level = ?,
				sent_back_from = ?, edit_user = ?, version = version + 1, updated_at = ?
			WHERE doc_no = ? AND version = ?`,
			doc.DocType, formatDate(doc.DocDate), doc.RefDocNo, string(doc.PdoType),
			doc.DivCode, doc.InvoiceNumber, doc.InvoiceDate, doc.CurrCode,
			doc.ExRate.String(), doc.Remarks, string(doc.LastAction), int(doc.FlowLevel),
			int(doc.SentBackFrom), doc.EditUser, now, docNo, doc.Version)
		if err != nil {
			return "", err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return "", err
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM documents WHERE doc_no = ?`, docNo).Scan(&exists); err != nil {
				return "", err
			}
			if exists == 0 {
				return "", engine.ErrNotFound
			}
			return "", engine.ErrConflict
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_items WHERE doc_no = ?`, docNo); err != nil {
		return "", err
	}
	for _, item := range doc.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO document_items (
				doc_no, serial_no, description, original_qty, pdo_type,
				qty, price, tax_pct_1, curr_code, ex_rate
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			docNo, item.SerialNo, item.Description, item.OriginalQty, string(item.PdoType),
			item.Qty, item.Price.String(), item.TaxPercent1.String(), item.CurrCode, item.ExRate.String())
		if err != nil {
			return "", err
		}
	}

	if entry != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO document_history (id, doc_no, action, remark, actor, from_level, to_level, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, docNo, string(entry.Action), entry.Remark, entry.Actor,
			int(entry.FromLevel), int(entry.ToLevel), entry.At.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return docNo, nil
}

// nextDocNo allocates the next document number for a company.
func (s *Store) nextDocNo(ctx context.Context, tx *sql.Tx, companyCode string) (string, error) {
	var n int64
	err := tx.QueryRowContext(ctx,
		`SELECT next_no FROM doc_sequence WHERE company_code = ?`, companyCode).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		n = 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO doc_sequence (company_code, next_no) VALUES (?, 2)`, companyCode); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE doc_sequence SET next_no = next_no + 1 WHERE company_code = ?`, companyCode); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s-VIR-%06d", companyCode, n), nil
}

// Get returns the current persisted document with items and history.
func (s *Store) Get(ctx context.Context, docNo string) (*engine.InvoiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT doc_no, company_code, doc_type, doc_date, ref_doc_no, pdo_type,
		       ac_code, div_code, invoice_number, invoice_date, curr_code, ex_rate,
		       remarks, last_action, flow_level, sent_back_from, edit_user, version
		FROM documents WHERE doc_no = ?`, docNo)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if doc.Items, err = s.loadItems(ctx, docNo); err != nil {
		return nil, err
	}
	if doc.History, err = s.loadHistory(ctx, docNo); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListInFlight returns documents sitting with an approver tier.
func (s *Store) ListInFlight(ctx context.Context) ([]*engine.InvoiceRequest, error) {
	return s.listDocuments(ctx, `
		SELECT doc_no, company_code, doc_type, doc_date, ref_doc_no, pdo_type,
		       ac_code, div_code, invoice_number, invoice_date, curr_code, ex_rate,
		       remarks, last_action, flow_level, sent_back_from, edit_user, version
		FROM documents
		WHERE last_action IN ('SUBMITTED', 'SENTBACK') AND flow_level >= 1
		ORDER BY doc_no`)
}

// ListWorklist returns the originator's editable documents for an account.
func (s *Store) ListWorklist(ctx context.Context, acCode string) ([]*engine.InvoiceRequest, error) {
	return s.listDocuments(ctx, `
		SELECT doc_no, company_code, doc_type, doc_date, ref_doc_no, pdo_type,
		       ac_code, div_code, invoice_number, invoice_date, curr_code, ex_rate,
		       remarks, last_action, flow_level, sent_back_from, edit_user, version
		FROM documents
		WHERE ac_code = ?
		  AND (last_action = 'DRAFT' OR (last_action = 'SENTBACK' AND flow_level = 0))
		ORDER BY doc_no`, acCode)
}

// ListPosted returns non-draft documents for an account in document
// number order, bounded by doc date when a range is given.
func (s *Store) ListPosted(ctx context.Context, acCode string, from, to time.Time) ([]*engine.InvoiceRequest, error) {
	query := `
		SELECT doc_no, company_code, doc_type, doc_date, ref_doc_no, pdo_type,
		       ac_code, div_code, invoice_number, invoice_date, curr_code, ex_rate,
		       remarks, last_action, flow_level, sent_back_from, edit_user, version
		FROM documents
		WHERE ac_code = ? AND last_action != 'DRAFT'`
	args := []any{acCode}
	if !from.IsZero() {
		query += ` AND doc_date >= ?`
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		query += ` AND doc_date <= ?`
		args = append(args, formatDate(to))
	}
	query += ` ORDER BY doc_no`
	return s.listDocuments(ctx, query, args...)
}

// History returns the ordered history for a document.
func (s *Store) History(ctx context.Context, docNo string) ([]engine.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadHistory(ctx, docNo)
}

// =============================================================================
// MEMBERSHIP STORE
// =============================================================================

// Membership loads the approver level sets.
func (s *Store) Membership(ctx context.Context) (*engine.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT level, login_id FROM approver_levels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var level1, level2 []string
	for rows.Next() {
		var level int
		var loginID string
		if err := rows.Scan(&level, &loginID); err != nil {
			return nil, err
		}
		switch engine.FlowLevel(level) {
		case engine.LevelOne:
			level1 = append(level1, loginID)
		case engine.LevelTwo:
			level2 = append(level2, loginID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return engine.NewMembership(level1, level2), nil
}

// SeedMembership inserts membership rows, ignoring duplicates. Used at
// startup to load the configured approver sets.
func (s *Store) SeedMembership(ctx context.Context, level1, level2 []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := func(level engine.FlowLevel, ids []string) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO approver_levels (level, login_id) VALUES (?, ?)`,
				int(level), id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(engine.LevelOne, level1); err != nil {
		return err
	}
	if err := insert(engine.LevelTwo, level2); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// REF DOC STORE
// =============================================================================

// RefLines returns a reference document's classification and lines.
func (s *Store) RefLines(ctx context.Context, refDocNo string) (engine.PdoType, []engine.RefLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pdo string
	err := s.db.QueryRowContext(ctx,
		`SELECT pdo_type FROM ref_documents WHERE ref_doc_no = ?`, refDocNo).Scan(&pdo)
	if err == sql.ErrNoRows {
		return "", nil, engine.ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT serial_no, description, qty, price, tax_pct_1, curr_code, ex_rate
		FROM ref_document_items WHERE ref_doc_no = ? ORDER BY serial_no`, refDocNo)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	var lines []engine.RefLine
	for rows.Next() {
		var rl engine.RefLine
		var price, taxPct, exRate string
		if err := rows.Scan(&rl.SerialNo, &rl.Description, &rl.Qty, &price, &taxPct, &rl.CurrCode, &exRate); err != nil {
			return "", nil, err
		}
		rl.Price = mustDecimal(price)
		rl.TaxPercent1 = mustDecimal(taxPct)
		rl.ExRate = mustDecimal(exRate)
		lines = append(lines, rl)
	}
	return engine.PdoType(pdo), lines, rows.Err()
}

// SeedRefDoc stores a reference document for draft seeding.
func (s *Store) SeedRefDoc(ctx context.Context, refDocNo string, pdo engine.PdoType, lines []engine.RefLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO ref_documents (ref_doc_no, pdo_type) VALUES (?, ?)`,
		refDocNo, string(pdo)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ref_document_items WHERE ref_doc_no = ?`, refDocNo); err != nil {
		return err
	}
	for _, rl := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ref_document_items (ref_doc_no, serial_no, description, qty, price, tax_pct_1, curr_code, ex_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			refDocNo, rl.SerialNo, rl.Description, rl.Qty, rl.Price.String(),
			rl.TaxPercent1.String(), rl.CurrCode, rl.ExRate.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*engine.InvoiceRequest, error) {
	var doc engine.InvoiceRequest
	var docDate, pdoType, exRate, lastAction string
	var flowLevel, sentBackFrom int

	err := row.Scan(
		&doc.DocNo, &doc.CompanyCode, &doc.DocType, &docDate, &doc.RefDocNo, &pdoType,
		&doc.AcCode, &doc.DivCode, &doc.InvoiceNumber, &doc.InvoiceDate, &doc.CurrCode,
		&exRate, &doc.Remarks, &lastAction, &flowLevel, &sentBackFrom, &doc.EditUser,
		&doc.Version)
	if err != nil {
		return nil, err
	}

	doc.DocDate = parseDate(docDate)
	doc.PdoType = engine.PdoType(pdoType)
	doc.ExRate = mustDecimal(exRate)
	doc.LastAction = engine.State(lastAction)
	doc.FlowLevel = engine.FlowLevel(flowLevel)
	doc.SentBackFrom = engine.FlowLevel(sentBackFrom)
	return &doc, nil
}

func (s *Store) listDocuments(ctx context.Context, query string, args ...any) ([]*engine.InvoiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*engine.InvoiceRequest
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Items, err = s.loadItems(ctx, doc.DocNo); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (s *Store) loadItems(ctx context.Context, docNo string) ([]engine.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT serial_no, description, original_qty, pdo_type, qty, price, tax_pct_1, curr_code, ex_rate
		FROM document_items WHERE doc_no = ? ORDER BY serial_no`, docNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []engine.LineItem
	for rows.Next() {
		var item engine.LineItem
		var pdoType, price, taxPct, exRate string
		if err := rows.Scan(&item.SerialNo, &item.Description, &item.OriginalQty, &pdoType,
			&item.Qty, &price, &taxPct, &item.CurrCode, &exRate); err != nil {
			return nil, err
		}
		item.PdoType = engine.PdoType(pdoType)
		item.Price = mustDecimal(price)
		item.TaxPercent1 = mustDecimal(taxPct)
		item.ExRate = mustDecimal(exRate)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, docNo string) ([]engine.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_no, action, remark, actor, from_level, to_level, created_at
		FROM document_history WHERE doc_no = ? ORDER BY created_at`, docNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.HistoryEntry
	for rows.Next() {
		var e engine.HistoryEntry
		var action, createdAt string
		var fromLevel, toLevel int
		if err := rows.Scan(&e.ID, &e.DocNo, &action, &e.Remark, &e.Actor, &fromLevel, &toLevel, &createdAt); err != nil {
			return nil, err
		}
		e.Action = engine.State(action)
		e.FromLevel = engine.FlowLevel(fromLevel)
		e.ToLevel = engine.FlowLevel(toLevel)
		e.At, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
