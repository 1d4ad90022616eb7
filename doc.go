/*
Package ddnsrelay implements the server half of a dynamic DNS relay.

A client calls the relay over HTTP with basic auth and a domain query parameter.
The relay takes the caller's IP address from the request
and points the domain's A record at it through a DNS [Provider].

Usage will usually start with [NewCloudflare] for the provider,
[NewUpdater] for the update logic,
and [NewHandler] for the http.Handler that ties them to incoming requests.
The client half lives in the reporter package.
*/
package ddnsrelay
