// Package wallpaper sets the desktop background by shelling out to the
// platform's own tooling.
package wallpaper

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/disintegration/imaging"

	"folio/internal/apperr"
	"folio/internal/logging"
)

const commandTimeout = 30 * time.Second

// Command is an external program invocation.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Setter applies images as the wallpaper of the current desktop.
type Setter struct {
	goos    string
	desktop string
	tempDir string
	run     func(ctx context.Context, c Command) error
}

// New returns a Setter for the running platform.
func New() *Setter {
	return &Setter{
		goos:    runtime.GOOS,
		desktop: os.Getenv("XDG_CURRENT_DESKTOP"),
		tempDir: os.TempDir(),
		run:     runCommand,
	}
}

// Set makes path the desktop wallpaper.
func (s *Setter) Set(path string) error {
	const op = "set wallpaper"

	if s.goos == "windows" {
		// SystemParametersInfo is given an opaque PNG copy.
		flat := filepath.Join(s.tempDir, "folio_wallpaper.png")
		if err := flatten(path, flat); err != nil {
			return apperr.Wrap(apperr.StorageFailure, op, err, "flatten image")
		}
		path = flat
	}

	cmd, err := CommandFor(s.goos, s.desktop, path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	logging.Debug("Setting wallpaper: %s", cmd.Name)
	if err := s.run(ctx, cmd); err != nil {
		return apperr.Wrap(apperr.Internal, op, err, cmd.Name+" failed")
	}
	return nil
}

// CommandFor builds the command that sets path as the wallpaper on goos.
// desktop is the value of XDG_CURRENT_DESKTOP and only matters on Linux.
func CommandFor(goos, desktop, path string) (Command, error) {
	switch goos {
	case "windows":
		return Command{Name: "powershell", Args: []string{"-NoProfile", "-EncodedCommand", encodePowerShell(windowsScript(path))}}, nil

	case "darwin":
		escaped := strings.ReplaceAll(path, `"`, `\"`)
		return Command{Name: "osascript", Args: []string{
			"-e", fmt.Sprintf(`tell application "Finder" to set desktop picture to POSIX file "%s"`, escaped),
		}}, nil

	case "linux", "freebsd", "openbsd", "netbsd":
		de := strings.ToLower(desktop)
		switch {
		case strings.Contains(de, "gnome"):
			return Command{Name: "gsettings", Args: []string{
				"set", "org.gnome.desktop.background", "picture-uri", "file://" + path,
			}}, nil
		case strings.Contains(de, "kde"):
			return Command{Name: "qdbus", Args: []string{
				"org.kde.plasmashell", "/PlasmaShell", "org.kde.PlasmaShell.evaluateScript", kdeScript(path),
			}}, nil
		default:
			return Command{Name: "pcmanfm", Args: []string{"--set-wallpaper=" + path}}, nil
		}
	}
	return Command{}, apperr.New(apperr.InvalidOperation, "set wallpaper", "unsupported platform: %s", goos)
}

func windowsScript(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	return `Set-ItemProperty -Path "HKCU:\Control Panel\Desktop" -Name WallpaperStyle -Value 6
Set-ItemProperty -Path "HKCU:\Control Panel\Desktop" -Name TileWallpaper -Value 0
Add-Type @"
using System;
using System.Runtime.InteropServices;
public class Wallpaper {
  [DllImport("user32.dll", CharSet = CharSet.Auto)]
  public static extern int SystemParametersInfo(int uAction, int uParam, string lpvParam, int fuWinIni);
}
"@
[Wallpaper]::SystemParametersInfo(20, 0, "` + p + `", 3)
`
}

func kdeScript(path string) string {
	return `var all = desktops(); for (var i = 0; i < all.length; i++) { var d = all[i]; ` +
		`d.wallpaperPlugin = "org.kde.image"; ` +
		`d.currentConfigGroup = ["Wallpaper", "org.kde.image", "General"]; ` +
		`d.writeConfig("Image", "file://` + path + `"); }`
}

// encodePowerShell encodes a script for -EncodedCommand: base64 over
// UTF-16LE.
func encodePowerShell(script string) string {
	units := utf16.Encode([]rune(script))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// flatten writes src to dst as a PNG composited over black.
func flatten(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return imaging.Save(out, dst)
}

func runCommand(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w - %s", c.Name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
