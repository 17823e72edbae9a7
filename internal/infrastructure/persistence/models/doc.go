// Package models contains the GORM persistence models for the sync engine.
// Models map between database rows and domain entities via ToDomain and
// FromDomain; domain packages never see gorm tags.
package models
