// Package scanner walks a workspace tree feeding Ada source files to the
// indexer.
package scanner

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/simonjwright/ada-language-server/internal/resolver"
)

// Scan walks the subtree under root. Hidden directories are skipped
// entirely. Each remaining file is offered to skip(); when that returns
// false the file is read and callback(path, contents) invoked. Scan returns
// once all callbacks have completed.
func Scan(
	root string,
	skip func(path string, info fs.FileInfo) bool,
	callback func(path string, document []byte),
) {
	fileCh := make(chan string, 100)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileCh {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Println("scanner: read error:", path, err)
				continue
			}
			callback(path, data)
		}
	}()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Println("scanner: walk error:", err)
			return nil
		}

		if d.IsDir() {
			if resolver.IgnoreDir(path) {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if skip(path, info) {
			return nil
		}

		fileCh <- path
		return nil
	})
	if err != nil {
		log.Println("scanner: WalkDir finished with error:", err)
	}

	close(fileCh)
	wg.Wait()
}
