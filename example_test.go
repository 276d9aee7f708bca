package bookrec_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/bookrec"
	"github.com/hupe1980/bookrec/blobstore"
	"github.com/hupe1980/bookrec/dataset"
)

func writeExampleData(dir string) dataset.Files {
	books := `ISBN,Book-Title,Book-Author,Year-Of-Publication,Publisher,Image-URL-M,Image-URL-L
ia,Title A,Author A,2000,Pub A,http://img/ma,http://img/la
ib,Title B,Author B,2001,Pub B,http://img/mb,http://img/lb
`
	ratings := `User-ID,ISBN,Book-Rating
1,ia,5
2,ia,4
1,ib,4
2,ib,5
`
	users := `User-ID,Age
1,30
2,40
`
	files := dataset.Files{
		Books:   filepath.Join(dir, "books.csv"),
		Ratings: filepath.Join(dir, "ratings.csv"),
		Users:   filepath.Join(dir, "users.csv"),
	}
	_ = os.WriteFile(files.Books, []byte(books), 0o644)
	_ = os.WriteFile(files.Ratings, []byte(ratings), 0o644)
	_ = os.WriteFile(files.Users, []byte(users), 0o644)
	return files
}

// Example demonstrates building an engine from CSV exports and querying it.
func Example() {
	dir, err := os.MkdirTemp("", "bookrec-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	eng, err := bookrec.Open(context.Background(),
		bookrec.WithDataset(writeExampleData(dir)),
		bookrec.WithStore(blobstore.NewMemoryStore()),
		bookrec.WithThresholds(1, 1), // tiny example dataset
	)
	if err != nil {
		log.Fatal(err)
	}

	result, err := eng.Recommend(context.Background(), "Title A", 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Status, result.Items[0].Title)
	// Output: found Title B
}

// Example_unknownTitle demonstrates that querying an unindexed title is a
// normal result rather than an error.
func Example_unknownTitle() {
	dir, err := os.MkdirTemp("", "bookrec-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	eng, err := bookrec.Open(context.Background(),
		bookrec.WithDataset(writeExampleData(dir)),
		bookrec.WithStore(blobstore.NewMemoryStore()),
		bookrec.WithThresholds(1, 1),
	)
	if err != nil {
		log.Fatal(err)
	}

	result, err := eng.Recommend(context.Background(), "An Unindexed Title", 3)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Status)
	// Output: not_found
}
