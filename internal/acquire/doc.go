// Package acquire runs the ordered fallback over download strategies.
//
// A plan lists strategies in preference order; credentialed strategies are
// dropped when no usable cookies exist. Run tries each strategy under its own
// timeout. Auth-required and transient failures move on to the next strategy,
// while a format failure stops the search immediately. When every strategy
// fails, the returned *Error carries the aggregated classification and an
// operator hint.
package acquire
