// Package models holds the portal's persistent records: clients, access profiles,
// policies and policy documents.
package models
