package main

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/Luzifer/go_helpers/v2/str"
	"github.com/Luzifer/rconfig/v2"
	"github.com/sirupsen/logrus"

	"github.com/Luzifer/smm-extract/smm"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o644
)

var (
	cfg = struct {
		Dest           string `flag:"dest,d" default:"." description:"Path prefix to use to extract members to"`
		Extract        bool   `flag:"extract,x" default:"false" description:"Extract members (if not given members are just listed)"`
		Info           bool   `flag:"info,i" default:"false" description:"Print a summary of the course instead of listing members"`
		JPEG           bool   `flag:"jpeg" default:"false" description:"Unwrap thumbnail containers into plain JPEG files while extracting"`
		LogLevel       string `flag:"log-level" default:"info" description:"Log level (debug, info, warn, error, fatal)"`
		Verify         bool   `flag:"verify" default:"false" description:"Validate member checksums and exit non-zero on mismatch"`
		VersionAndExit bool   `flag:"version" default:"false" description:"Prints current version and exits"`
	}{}

	version = "dev"
)

// bundleMember is one raw tar entry, name as stored in the archive
type bundleMember struct {
	Name string
	Data []byte
}

func initApp() (err error) {
	if err = rconfig.ParseAndValidate(&cfg); err != nil {
		return fmt.Errorf("parsing CLI options: %w", err)
	}

	l, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log-level: %w", err)
	}
	logrus.SetLevel(l)

	return nil
}

//nolint:gocyclo // linear mode dispatch, fine to understand
func main() {
	var err error
	if err = initApp(); err != nil {
		logrus.WithError(err).Fatal("initializing app")
	}

	if cfg.VersionAndExit {
		fmt.Printf("smm-extract %s\n", version) //nolint:forbidigo
		os.Exit(0)
	}

	var (
		archive string
		only    []string
	)

	switch len(rconfig.Args()) {
	case 1:
		// No positional arguments
		logrus.Fatal("no course archive given")

	case 2: //nolint:mnd
		archive = rconfig.Args()[1]

	default:
		archive = rconfig.Args()[1]
		only = rconfig.Args()[2:]
	}

	f, err := os.Open(archive) //#nosec:G304 // Intended to open arbitrary files
	if err != nil {
		logrus.WithError(err).Fatal("opening input file")
	}
	defer f.Close() //nolint:errcheck // will be closed by program exit

	members, err := readMembers(f)
	if err != nil {
		logrus.WithError(err).Fatal("reading course archive")
	}

	logrus.WithField("no_members", len(members)).Debug("opened archive")

	if cfg.Info {
		if err = printCourseInfo(members); err != nil {
			logrus.WithError(err).Fatal("decoding course")
		}
		return
	}

	if cfg.Verify {
		if err = verifyMembers(members, only); err != nil {
			logrus.WithError(err).Fatal("verifying checksums")
		}
		return
	}

	if cfg.Extract {
		destInfo, err := os.Stat(cfg.Dest)
		if err != nil {
			if !os.IsNotExist(err) {
				logrus.WithError(err).Fatal("accessing destination")
			}

			if err := os.MkdirAll(cfg.Dest, dirPermissions); err != nil {
				logrus.WithError(err).Fatal("creating destination directory")
			}
		}

		if destInfo != nil && !destInfo.IsDir() {
			logrus.Fatal("destination exists and is no directory")
		}
	}

	for _, member := range members {
		if !str.StringInSlice(member.Name, only) && len(only) > 0 {
			// Members to handle are given but this is not mentioned
			continue
		}

		if !cfg.Extract {
			// Not asked to extract, do not extract
			fmt.Println(member.Name) //nolint:forbidigo // Intended to print member list
			continue
		}

		destName := member.Name
		data := member.Data

		if cfg.JPEG && strings.HasSuffix(destName, ".tnl") {
			t, err := smm.DecodeThumbnail(data)
			if err != nil {
				logrus.WithError(err).WithField("member", member.Name).Fatal("decoding thumbnail")
			}

			destName = strings.TrimSuffix(destName, ".tnl") + ".jpg"
			data = t.JPEG
		}

		destPath := path.Join(cfg.Dest, destName)
		if err := os.MkdirAll(path.Dir(destPath), dirPermissions); err != nil {
			logrus.WithError(err).Fatal("creating directory")
		}

		if err := os.WriteFile(destPath, data, filePermissions); err != nil {
			logrus.WithError(err).WithField("name", destName).Fatal("writing member contents")
		}

		logrus.WithField("file", destName).Info("member extracted")
	}
}

// readMembers slurps all regular entries of the tar stream in archive order
func readMembers(r io.Reader) ([]bundleMember, error) {
	var members []bundleMember

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			// Directories cannot be course members
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading member %s: %w", hdr.Name, err)
		}

		members = append(members, bundleMember{Name: hdr.Name, Data: data})
	}
}

func printCourseInfo(members []bundleMember) error {
	byName := map[string][]byte{}
	for _, member := range members {
		byName[path.Base(member.Name)] = member.Data
	}

	course, err := smm.CourseFromMembers(byName)
	if err != nil {
		return fmt.Errorf("assembling course: %w", err)
	}

	printLevelInfo("Course", course.Level)
	printLevelInfo("Sub-world", course.SubLevel)
	fmt.Printf("Preview: %d bytes JPEG, Thumbnail: %d bytes JPEG\n", //nolint:forbidigo
		len(course.Preview.JPEG), len(course.Thumbnail.JPEG))

	return nil
}

//nolint:forbidigo // Intended to print the course summary
func printLevelInfo(title string, l *smm.Level) {
	fmt.Printf("%s: %q (%s)\n", title, l.Name, l.GameMode)
	fmt.Printf("  Created: %s\n", l.CreationTime.Format("2006-01-02 15:04"))
	fmt.Printf("  Theme: %s, Time limit: %ds, Auto-scroll: %s\n", l.CourseTheme, l.TimeLimit, l.AutoScroll)
	fmt.Printf("  Size: %dx%d blocks, Objects: %d, Sound effects: %d\n",
		l.BlockWidth(), l.BlockHeight(), len(l.Objects), activeSoundEffects(l))
}

// activeSoundEffects counts the used slots of the fixed sound effect table
func activeSoundEffects(l *smm.Level) (n int) {
	for _, s := range l.SoundEffects {
		if s != (smm.SoundEffect{}) {
			n++
		}
	}

	return n
}

func verifyMembers(members []bundleMember, only []string) error {
	var failed bool

	for _, member := range members {
		if !str.StringInSlice(member.Name, only) && len(only) > 0 {
			continue
		}

		var err error
		switch path.Base(member.Name) {
		case smm.MemberCourseData, smm.MemberCourseDataSub:
			err = smm.VerifyLevelChecksum(member.Data)

		case smm.MemberThumbnail0, smm.MemberThumbnail1:
			err = smm.VerifyThumbnailChecksum(member.Data)

		default:
			// Not a member with a known checksum
			continue
		}

		if err != nil {
			logrus.WithError(err).WithField("member", member.Name).Error("checksum mismatch")
			failed = true
			continue
		}

		logrus.WithField("member", member.Name).Info("checksum ok")
	}

	if failed {
		return errors.New("one or more members failed verification")
	}

	return nil
}
