// Package batch crawls several root URLs.
//
// Every root is crawled by its own Crawler instance obtained from a factory,
// so no crawl state is shared between roots. The number of crawls running at
// the same time is bounded with errgroup.SetLimit; the default of one runs
// the roots sequentially in the order given.
package batch
