/*
Package nextdns provides a client for the NextDNS profile API and a syncer that
reconciles a profile's denylist or allowlist against a list of domains.

Usage will usually start with [nextdns.New],
which returns a [Client] configured by options such as [UsingAPIKey].
A [Syncer] is built around anything implementing [ListService] (normally the Client)
and applies the minimal set of removals, activation updates and additions
needed to make the remote list match a [Source].
*/
package nextdns
