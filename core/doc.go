// Package core contains the gateway client's domain contracts, entities and
// configuration. Transport, storage and adapter packages depend on this
// package; core must not depend on any of them.
package core
