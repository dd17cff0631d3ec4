// Package detail renders stored entity values as read-only display strings.
package detail
