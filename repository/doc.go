// Package repository implements the record operations over users, activity
// and preferences. Every operation runs in its own connection and
// transaction obtained from database.Manager.
package repository
