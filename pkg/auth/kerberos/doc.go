// Package kerberos provides the Kerberos login identity for the delegate.
//
// It wraps gokrb5 to load the service keytab and krb5.conf (with environment
// variable overrides), optionally log in to the KDC, poll the keytab for
// rotation, and map principals to short user names the way the DEFAULT
// auth_to_local rule does.
package kerberos
