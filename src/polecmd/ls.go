package polecmd

import (
	"context"
	"strings"

	"github.com/fatih/color"
	"go.brendoncarroll.net/star"

	"github.com/poletool/pole/src/kvtree"
	"github.com/poletool/pole/src/vaultkv"
)

var lsCmd = star.Command{
	Metadata: star.Metadata{
		Short: "recursively list the paths of all secrets below a directory",
	},
	Flags: map[string]star.Flag{
		"mount": mountParam,
	},
	Pos: []star.Positional{lsPathParam},
	F: func(c star.Context) error {
		// Cancelling this ctx on the way out reels in the background
		// listings still in flight if the walk ends early.
		ctx, cancel := context.WithCancel(c.Context)
		defer cancel()
		client, err := vaultkv.NewFromEnv(ctx, mountPoint(c))
		if err != nil {
			return err
		}
		root, _ := lsPathParam.LoadOpt(c)
		prefix := strings.Trim(root, "/")
		if prefix != "" {
			prefix += "/"
		}
		return kvtree.ForEach(ctx, client, root, func(leaf string) error {
			full := prefix + leaf
			if i := strings.LastIndexByte(full, '/'); i >= 0 {
				c.Printf("%s%s\n", color.HiBlackString(full[:i+1]), full[i+1:])
			} else {
				c.Printf("%s\n", full)
			}
			return nil
		})
	},
}

var lsPathParam = star.Optional[string]{
	ID:       "path",
	ShortDoc: "the directory to start from (the mount root is the default)",
	Parse:    star.ParseString,
}
