/*
Package reporter is the client half of ddnsrelay.

A [Client] calls the relay endpoint with the domain to update;
the relay takes the address from the connection itself.
With a [Resolver] configured the client only calls the relay when its public IPv4 address changes.
Use [RunDaemon] to keep doing that on an interval.
*/
package reporter
