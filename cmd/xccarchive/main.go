// Command xccarchive is a thin CLI wrapper over the codec packages:
// extract a MIX to a directory, patch a directory back into a MIX,
// render a single SHP frame to PNG, and dump a name database as TOML. It is
// an external collaborator of the library, not part of the tested core.
package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	"github.com/1siamBot/xccarchive/mix"
	"github.com/1siamBot/xccarchive/namedb"
	"github.com/1siamBot/xccarchive/pal"
	"github.com/1siamBot/xccarchive/shp"
)

type extractCmd struct {
	Args struct {
		Mix string `positional-arg-name:"mix" required:"true"`
		Dir string `positional-arg-name:"dir" required:"true"`
	} `positional-args:"yes"`
	GlobalDB string `long:"global-db" description:"path to an external name database to fall back to"`
}

type patchCmd struct {
	Args struct {
		Dir string `positional-arg-name:"dir" required:"true"`
		Mix string `positional-arg-name:"mix" required:"true"`
	} `positional-args:"yes"`
	GameID int32 `long:"game-id" default:"0"`
}

type renderCmd struct {
	Args struct {
		Mix     string `positional-arg-name:"mix" required:"true"`
		ShpName string `positional-arg-name:"shp-name" required:"true"`
		PalName string `positional-arg-name:"pal-name" required:"true"`
		Frame   int    `positional-arg-name:"frame" required:"true"`
		Out     string `positional-arg-name:"out" required:"true"`
	} `positional-args:"yes"`
	Thumbnail string `long:"thumbnail" description:"also scale the render to WxH and write it alongside out, suffixed .thumb.png"`
}

type namedbCmd struct {
	Dump namedbDumpCmd `command:"dump"`
}

type namedbDumpCmd struct {
	Args struct {
		In  string `positional-arg-name:"in" required:"true"`
		Out string `positional-arg-name:"out" required:"true"`
	} `positional-args:"yes"`
}

var opts struct {
	Extract extractCmd `command:"extract"`
	Patch   patchCmd   `command:"patch"`
	Render  renderCmd  `command:"render"`
	NameDB  namedbCmd  `command:"namedb"`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return
		}
		log.Fatal().Err(err).Msg("parse arguments")
	}
}

func (c *extractCmd) Execute(_ []string) error {
	data, err := os.ReadFile(c.Args.Mix)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Args.Mix, err)
	}

	var opts mix.DecodeOptions
	if c.GlobalDB != "" {
		dbBytes, err := os.ReadFile(c.GlobalDB)
		if err != nil {
			return fmt.Errorf("read global db %s: %w", c.GlobalDB, err)
		}
		db, err := namedb.Decode(dbBytes)
		if err != nil {
			return fmt.Errorf("decode global db: %w", err)
		}
		opts.GlobalDB = db
	}

	a, err := mix.Decode(data, opts)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.Args.Mix, err)
	}

	if err := os.MkdirAll(c.Args.Dir, 0o755); err != nil {
		return err
	}
	for name, b := range a.Files() {
		out := filepath.Join(c.Args.Dir, name)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return err
		}
		log.Info().Str("file", name).Int("bytes", len(b)).Msg("extracted")
	}
	log.Info().Int("count", len(a.Files())).Msg("extraction complete")
	return nil
}

func (c *patchCmd) Execute(_ []string) error {
	files := make(map[string][]byte)
	err := filepath.Walk(c.Args.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(c.Args.Dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = b
		return nil
	})
	if err != nil {
		return err
	}

	encoded := mix.Encode(files, c.GameID)
	if err := os.WriteFile(c.Args.Mix, encoded, 0o644); err != nil {
		return err
	}
	log.Info().Int("count", len(files)).Str("out", c.Args.Mix).Msg("patched archive written")
	return nil
}

func (c *renderCmd) Execute(_ []string) error {
	data, err := os.ReadFile(c.Args.Mix)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Args.Mix, err)
	}
	a, err := mix.Decode(data, mix.DecodeOptions{})
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.Args.Mix, err)
	}

	shpData, ok := a.Files()[c.Args.ShpName]
	if !ok {
		return fmt.Errorf("%s: no such entry %q", c.Args.Mix, c.Args.ShpName)
	}
	palData, ok := a.Files()[c.Args.PalName]
	if !ok {
		return fmt.Errorf("%s: no such entry %q", c.Args.Mix, c.Args.PalName)
	}

	sprite, err := shp.Decode(shpData)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.Args.ShpName, err)
	}
	palette, err := pal.Decode(palData)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.Args.PalName, err)
	}

	img, err := shp.RenderFrame(sprite, c.Args.Frame, palette)
	if err != nil {
		return fmt.Errorf("render frame %d: %w", c.Args.Frame, err)
	}

	if err := writePNG(c.Args.Out, img); err != nil {
		return err
	}
	log.Info().Str("out", c.Args.Out).Int("frame", c.Args.Frame).Msg("rendered")

	if c.Thumbnail != "" {
		thumb, err := scaleThumbnail(img, c.Thumbnail)
		if err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		thumbPath := strings.TrimSuffix(c.Args.Out, filepath.Ext(c.Args.Out)) + ".thumb.png"
		if err := writePNG(thumbPath, thumb); err != nil {
			return err
		}
		log.Info().Str("out", thumbPath).Str("size", c.Thumbnail).Msg("thumbnail rendered")
	}
	return nil
}

// scaleThumbnail resizes img to the WxH given in dims, the same
// CatmullRom scaling the asset importer uses for sprite previews.
func scaleThumbnail(img image.Image, dims string) (image.Image, error) {
	w, h, err := parseDims(dims)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst, nil
}

func parseDims(dims string) (int, int, error) {
	parts := strings.SplitN(dims, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid dimensions %q, want WxH", dims)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width %q: %w", parts[0], err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height %q: %w", parts[1], err)
	}
	return w, h, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func (c *namedbDumpCmd) Execute(_ []string) error {
	data, err := os.ReadFile(c.Args.In)
	if err != nil {
		return err
	}
	db, err := namedb.Decode(data)
	if err != nil {
		return fmt.Errorf("decode name database: %w", err)
	}

	out, err := os.Create(c.Args.Out)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := db.SaveTOML(out); err != nil {
		return fmt.Errorf("save name database as TOML: %w", err)
	}
	log.Info().Int("entries", db.Len()).Str("out", c.Args.Out).Msg("name database dumped")
	return nil
}
