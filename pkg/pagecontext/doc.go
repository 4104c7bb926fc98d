// Package pagecontext builds page contexts and moves them across the
// server/client boundary.
//
// A page context is accumulated from ordered sources (URL fields, the
// caller's initial context, route parameters, hook contributions); later
// sources override earlier ones key by key. Select cuts out the client
// context allowed by a page's passToClient list, and Serialize encodes it
// into text that can be embedded in a <script> element and read back with
// Parse.
package pagecontext
