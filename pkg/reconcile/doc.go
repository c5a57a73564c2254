// Package reconcile repairs clients that have no access profile ("orphans").
//
// A run loads all clients, all access profiles and every identity-provider
// account, then walks the orphans in creation order. Each orphan ends in one
// Outcome:
//
//	Skipped     no usable email address
//	Conflicted  the matching account already has a profile, or several accounts share the email
//	Linked      an unlinked account with the same email exists and gets a client profile
//	Created     no account exists; one is provisioned with a temporary password
//	Failed      a mutation returned an error
//
// Dry runs take the same decisions without calling the Provisioner. Only a
// failure to load the input sets aborts a run; everything else is reported per
// client in the Report.
//
//	report, err := reconcile.NewReconciler(idp, store, provisioner, metrics, logger).
//		Run(ctx, reconcile.Options{DryRun: true, Limit: 20})
package reconcile
