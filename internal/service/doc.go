// Package service implements the backend-independent part of a cluster service:
// a registry of views keyed by namespace with reference counting, service
// lifecycle, and leadership queries derived from the registered views.
//
// Backends embed *Base and supply a ViewFactory.
package service
