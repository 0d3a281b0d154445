// Package model holds the entities the service stores and the outcome
// shapes its repositories return.
//
// Expected business conditions (not found, already exists, no changes) are
// carried by Result and AuthResult values, never by errors.
package model
