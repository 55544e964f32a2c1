// Package tiles loads map tiles with a cap on concurrent downloads.
//
// A [Loader] hands out placeholder [Tile] values immediately and fills them
// in the background, never running more than a configured number of
// downloads at once. Tiles start downloading in the order they were
// requested. Tiles released before their turn are skipped when they reach
// the head of the queue.
//
// [SelectInstance] and [InstanceURLFunc] spread tiles across a pool of
// backing tile servers without coordination between them.
package tiles
