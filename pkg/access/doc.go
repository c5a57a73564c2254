// Package access grants clients access to the portal.
//
// Link attaches an account that already exists at the identity provider. Create
// runs in two phases: the account is created with a temporary password, then
// the access profile is written; if the second phase fails the account is
// deleted so no unreachable account is left behind.
//
// Both the orphan reconciliation pass and the client-creation endpoint use
// the same Provisioner.
package access
