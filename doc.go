// Package bookrec provides an embeddable item-to-item book recommendation
// engine based on collaborative filtering over explicit user ratings.
//
// The engine turns three raw tabular sources (books, ratings, users) into a
// filtered title-by-user rating matrix, fits an exact cosine nearest-neighbor
// index over the matrix rows, and answers similarity queries ranked by
// descending similarity.
//
// # Quick Start
//
//	ctx := context.Background()
//	eng, err := bookrec.Open(ctx,
//	    bookrec.WithDataset(dataset.Files{
//	        Books:   "Dataset/Books.csv",
//	        Ratings: "Dataset/Ratings.csv",
//	        Users:   "Dataset/Users.csv",
//	    }),
//	    bookrec.WithStore(blobstore.NewLocalStore("./cache")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, _ := eng.Recommend(ctx, "The Hobbit", 5)
//	if res.Status == bookrec.StatusFound {
//	    for _, item := range res.Items {
//	        fmt.Println(item.Rank, item.Title, item.Similarity)
//	    }
//	}
//
// # Build vs. Load
//
// Open first tries to load previously persisted matrix and index artifacts
// from the configured blob store. If both are present and intact, the rebuild
// is skipped entirely. Otherwise the full pipeline runs (ingestion, matrix
// construction, index fit) and the results are persisted atomically so the
// next Open is cheap. A corrupt or truncated artifact is never served; it
// triggers a full rebuild instead.
//
// Once built, the matrix and index are immutable and safe for concurrent
// queries. Rebuilds replace the whole state in a single swap; a rebuild that
// is already in progress causes a second attempt to fail with
// ErrRebuildInProgress rather than duplicating work.
package bookrec
