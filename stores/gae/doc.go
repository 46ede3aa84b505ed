//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// sessionauth UserStore. It is designed for deployment on Google Cloud
// Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses a single User kind holding the profile fields and the
// token_version revocation counter.
//
// # Namespacing
//
// Pass a namespace when creating the store to isolate data between tenants:
//
//	userStore := gae.NewUserStore(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "") // default namespace
package gae
