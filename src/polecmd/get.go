package polecmd

import (
	"fmt"

	"go.brendoncarroll.net/star"

	"github.com/poletool/pole/src/internal/tables"
	"github.com/poletool/pole/src/vaultkv"
)

var getCmd = star.Command{
	Metadata: star.Metadata{
		Short: "read a secret and print its key/value pairs",
	},
	Flags: map[string]star.Flag{
		"mount": mountParam,
	},
	Pos: []star.Positional{secretPathParam, fieldParam},
	F: func(c star.Context) error {
		ctx := c.Context
		client, err := vaultkv.NewFromEnv(ctx, mountPoint(c))
		if err != nil {
			return err
		}
		p := secretPathParam.Load(c)
		data, err := client.Read(ctx, p)
		if err != nil {
			return err
		}
		if field, ok := fieldParam.LoadOpt(c); ok {
			v, ok := data[field]
			if !ok {
				return fmt.Errorf("secret %q has no field %q", p, field)
			}
			c.Printf("%v\n", v)
			return nil
		}
		strData := make(map[string]string, len(data))
		for k, v := range data {
			strData[k] = fmt.Sprint(v)
		}
		c.Printf("%s\n", tables.Render(strData, 0))
		return nil
	},
}

var secretPathParam = star.Required[string]{
	ID:       "path",
	ShortDoc: "the path of the secret to read",
	Parse:    star.ParseString,
}

var fieldParam = star.Optional[string]{
	ID:       "field",
	ShortDoc: "print only this field's value",
	Parse:    star.ParseString,
}
