// Package sheetstest provides an in-memory remote store for tests.
package sheetstest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/sheets"
)

var idColumns = map[string]string{}

func init() {
	for _, s := range sheets.Schemas() {
		idColumns[s.Sheet] = s.Columns[0].Name
	}
}

// Remote mimics the spreadsheet web app: appends assign the next id,
// action=update merges fields into the row with the same id.
type Remote struct {
	mu     sync.Mutex
	rows   map[string][]map[string]any
	nextID map[string]int64
	loc    *time.Location

	// Echo returns the stored row from appends.
	Echo bool
	// DropAppends accepts appends without storing them.
	DropAppends bool
	// LoadErr fails every Load.
	LoadErr error
	// FailLoadsAfter fails loads once this many have succeeded; 0 disables.
	FailLoadsAfter int
	// WriteErr fails writes keyed by sheet name, or "<sheet>:update".
	WriteErr map[string]error
	// OnWrite runs before each write is applied.
	OnWrite func(sheet string, fields map[string]any)

	Loads  int
	Writes []Write
}

// Write records a write the fake accepted or rejected.
type Write struct {
	Sheet  string
	Fields map[string]any
}

func New() *Remote {
	return &Remote{
		rows:     map[string][]map[string]any{},
		nextID:   map[string]int64{},
		loc:      time.UTC,
		WriteErr: map[string]error{},
	}
}

// Seed stores rows as-is; each row must carry its id column.
func (r *Remote) Seed(sheet string, rows ...map[string]any) *Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	col := idColumns[sheet]
	for _, row := range rows {
		if id, ok := toInt(row[col]); ok && id > r.nextID[sheet] {
			r.nextID[sheet] = id
		}
		r.rows[sheet] = append(r.rows[sheet], clone(row))
	}
	return r
}

func (r *Remote) Location() *time.Location { return r.loc }

func (r *Remote) SetLocation(loc *time.Location) { r.loc = loc }

func (r *Remote) FetchAll(ctx context.Context) (sheets.RawData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, &sheets.TransportError{Op: "fetch_all", Err: err}
	}
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	if r.FailLoadsAfter > 0 && r.Loads >= r.FailLoadsAfter {
		return nil, &sheets.TransportError{Op: "fetch_all", Err: errors.New("simulated outage")}
	}
	r.Loads++
	raw := sheets.RawData{}
	for sheet, rows := range r.rows {
		for _, row := range rows {
			b, err := json.Marshal(row)
			if err != nil {
				return nil, err
			}
			raw[sheet] = append(raw[sheet], b)
		}
	}
	return raw, nil
}

func (r *Remote) Load(ctx context.Context) (*clinic.Dataset, []sheets.RowError, error) {
	raw, err := r.FetchAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	d, rowErrs := sheets.Decode(raw, r.loc)
	return d, rowErrs, nil
}

func (r *Remote) Write(ctx context.Context, sheet string, payload *sheets.Payload) (*sheets.WriteResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	if r.OnWrite != nil {
		r.OnWrite(sheet, fields)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes = append(r.Writes, Write{Sheet: sheet, Fields: fields})

	update := fields["action"] == sheets.ActionUpdate
	key := sheet
	if update {
		key += ":update"
	}
	if err := r.WriteErr[key]; err != nil {
		return nil, err
	}
	col := idColumns[sheet]

	if update {
		id, _ := toInt(fields[col])
		for _, row := range r.rows[sheet] {
			if rid, _ := toInt(row[col]); rid == id {
				for k, v := range fields {
					if k != "action" {
						row[k] = v
					}
				}
				return &sheets.WriteResult{Message: "updated"}, nil
			}
		}
		return nil, &sheets.RemoteError{Op: "update", Message: fmt.Sprintf("%s %d not found", col, id)}
	}

	if r.DropAppends {
		return &sheets.WriteResult{Message: "added"}, nil
	}
	r.nextID[sheet]++
	row := clone(fields)
	row[col] = r.nextID[sheet]
	r.rows[sheet] = append(r.rows[sheet], row)

	res := &sheets.WriteResult{Message: "added"}
	if r.Echo {
		echoed, _ := json.Marshal(row)
		res.Row = echoed
	}
	return res, nil
}

// LoadCount is Loads read under the lock, for use while refreshes run.
func (r *Remote) LoadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Loads
}

// WritesTo returns the writes made against sheet.
func (r *Remote) WritesTo(sheet string) []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Write
	for _, w := range r.Writes {
		if w.Sheet == sheet {
			out = append(out, w)
		}
	}
	return out
}

// Rows returns a copy of the stored rows for sheet.
func (r *Remote) Rows(sheet string) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, 0, len(r.rows[sheet]))
	for _, row := range r.rows[sheet] {
		out = append(out, clone(row))
	}
	return out
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
