// Package binding discovers platform service bindings.
//
// The catalog parser streams the VCAP_SERVICES document through a pull
// cursor, extracting only the fields a backend needs and skipping everything
// else. The selector then filters the resulting instances by tag and orders
// them by label preference.
package binding
