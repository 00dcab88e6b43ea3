package db

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/config"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/realtime"
)

func TestNewGormDB_SQLiteWithPlugin(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop())
	sub := hub.Subscribe(model.Alert{}.TableName())
	defer sub.Close()

	cfg := &config.DBConfig{Driver: config.DriverSQLite, Path: ":memory:", MaxOpenConns: 10}
	gormDB, err := NewGormDB(cfg, realtime.NewPlugin(hub, model.Tables...))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("max open conns = %d, want 1", got)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := gormDB.Create(&model.Alert{Type: "escalamiento"}).Error; err != nil {
		t.Fatalf("create alert: %v", err)
	}
	select {
	case e := <-sub.C():
		if e.Op != realtime.OpInsert {
			t.Fatalf("event = %+v", e)
		}
	default:
		t.Fatalf("plugin not installed")
	}
}

func TestNewGormDB_CalendarColumnsRoundTrip(t *testing.T) {
	cfg := &config.DBConfig{Driver: config.DriverSQLite, Path: ":memory:"}
	gormDB, err := NewGormDB(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()
	if err := model.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var ddl string
	if err := gormDB.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", "slots").Scan(&ddl).Error; err != nil {
		t.Fatalf("read ddl: %v", err)
	}
	if !strings.Contains(ddl, "`hora` text") {
		t.Fatalf("hora column type: %s", ddl)
	}

	date := calendar.NewDate(2025, time.March, 8)
	// Same court on consecutive hours must not collide on the cell index.
	for _, at := range []string{"20:00", "21:30"} {
		slot := &model.Slot{
			Venue:     "Lo Prado",
			CourtType: "Futbolito",
			Court:     "Cancha 1",
			Date:      date,
			Time:      calendar.MustClock(at),
			Duration:  60,
			State:     model.SlotAvailable,
		}
		if err := gormDB.Create(slot).Error; err != nil {
			t.Fatalf("create slot %s: %v", at, err)
		}
	}

	var slots []model.Slot
	if err := gormDB.Order("hora ASC").Find(&slots).Error; err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(slots))
	}
	if slots[0].Time != calendar.MustClock("20:00") || slots[1].Time != calendar.MustClock("21:30") {
		t.Fatalf("times = %s, %s", slots[0].Time, slots[1].Time)
	}
	if slots[0].Date != date {
		t.Fatalf("date = %s, want %s", slots[0].Date, date)
	}

	var n int64
	if err := gormDB.Model(&model.Slot{}).Where("hora = ?", calendar.MustClock("21:30")).Count(&n).Error; err != nil {
		t.Fatalf("count by time: %v", err)
	}
	if n != 1 {
		t.Fatalf("slots at 21:30 = %d, want 1", n)
	}
}
