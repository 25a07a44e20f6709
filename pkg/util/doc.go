// Package util provides small generic helpers shared across the relay packages
package util
