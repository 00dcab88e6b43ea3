package realtime

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Plugin publishes an Event for every successful create, update or delete
// that touches a tracked table. Writes done with a held context are queued
// on the Held collector instead.
type Plugin struct {
	pub    Publisher
	tables map[string]bool
	now    func() time.Time
}

func NewPlugin(pub Publisher, tables ...string) *Plugin {
	p := &Plugin{
		pub:    pub,
		tables: make(map[string]bool, len(tables)),
		now:    time.Now,
	}
	for _, t := range tables {
		p.tables[t] = true
	}
	return p
}

func (p *Plugin) Name() string { return "realtime" }

func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("realtime:after_create", p.emit(OpInsert)); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("realtime:after_update", p.emit(OpUpdate)); err != nil {
		return err
	}
	return cb.Delete().After("gorm:delete").Register("realtime:after_delete", p.emit(OpDelete))
}

func (p *Plugin) emit(op Op) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Error != nil || tx.RowsAffected == 0 || tx.Statement == nil {
			return
		}
		table := tx.Statement.Table
		if !p.tables[table] {
			return
		}

		e := Event{Table: table, Op: op, At: p.now().UTC()}
		if tx.Statement.Dest != nil {
			if raw, err := json.Marshal(tx.Statement.Dest); err == nil {
				e.Record = raw
			}
		}

		if h := heldFrom(tx.Statement.Context); h != nil {
			h.add(p.pub, e)
			return
		}
		p.pub.Publish(e)
	}
}
