package model

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openMigrated(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(AllModels...); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	return db
}

func TestAllModels_Migrate(t *testing.T) {
	db := openMigrated(t)
	for _, m := range AllModels {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}

func TestJSONColumns_RoundTrip(t *testing.T) {
	db := openMigrated(t)

	q := &Query{DatasetID: 1, QueryText: "hi", Meta: JSON{MetaExpectationsClear: true}}
	if err := db.Create(q).Error; err != nil {
		t.Fatal(err)
	}
	var gotQ Query
	if err := db.First(&gotQ, q.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotQ.Meta[MetaExpectationsClear] != true {
		t.Errorf("Meta = %v", gotQ.Meta)
	}

	run := &Run{DatasetID: 1, APIURL: "http://chat.local", AuthTokenEncrypted: "x", Status: RunStatusPending,
		Config: RunConfig{CriterionKeys: []string{"guardrailed"}}}
	if err := db.Create(run).Error; err != nil {
		t.Fatal(err)
	}
	var gotRun Run
	if err := db.First(&gotRun, run.ID).Error; err != nil {
		t.Fatal(err)
	}
	if len(gotRun.Config.CriterionKeys) != 1 || gotRun.Config.CriterionKeys[0] != "guardrailed" {
		t.Errorf("Config = %#v", gotRun.Config)
	}

	resp := &MessageResponse{RunID: run.ID, QueryID: q.ID, RequestMessage: "hi",
		RawChunks: RawChunks{LastChunk: map[string]any{"avatar": "coach"}}}
	if err := db.Create(resp).Error; err != nil {
		t.Fatal(err)
	}
	var gotResp MessageResponse
	if err := db.First(&gotResp, resp.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotResp.RawChunks.LastChunk["avatar"] != "coach" {
		t.Errorf("RawChunks = %#v", gotResp.RawChunks)
	}

	reason := "ok"
	v := &Validation{RunID: run.ID, MessageResponseID: resp.ID, CriterionKey: "guardrailed", Passed: true,
		Details: ValidationDetails{Reason: &reason}}
	if err := db.Create(v).Error; err != nil {
		t.Fatal(err)
	}
	var gotV Validation
	if err := db.First(&gotV, v.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotV.Details.Reason == nil || *gotV.Details.Reason != "ok" {
		t.Errorf("Details = %#v", gotV.Details)
	}
}
