// Package pager drains cursor-paginated API collections into ordered slices.
//
// A collection is described by a [Source]: a Fetch function returning the first [Page] and a Follow function that
// resolves a page's Next cursor into the following page. [Collect] walks the chain until a page arrives with an empty
// cursor, preserving server order.
//
// # Retries
//
// Errors wrapping [shared.ErrTransient] (rate limiting, 5xx, timeouts) are retried with exponential backoff. Every
// other error aborts the walk and is returned wrapped with the page number. No partial result is returned.
//
// # Bounds
//
// The number of pages is capped ([WithMaxPages]) so a server that never terminates its cursor chain cannot grow
// memory without limit. Exceeding the cap returns [ErrTooManyPages].
package pager
