//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of the sessionauth
// UserStore. It supports any database that GORM supports (PostgreSQL,
// MySQL, SQLite, etc.) and is suitable for production deployments.
//
// # Database Schema
//
// The package auto-migrates a single "users" table carrying the profile
// fields and the token_version revocation counter.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	if err := gormstore.AutoMigrate(db); err != nil {
//	    log.Fatal(err)
//	}
//	userStore := gormstore.NewUserStore(db)
package gorm
