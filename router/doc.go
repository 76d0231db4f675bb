// Package router classifies a raw user message into a service category and
// dispatches it to a system-prompted responder for that category.
//
// The runner uses a Dispatcher as its Fallback when the memory graph ends a
// turn without assistant content. Categories outside the known set are an
// error rather than silently mapped to Others.
package router
