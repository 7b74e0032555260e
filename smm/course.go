// Package smm implements the Super Mario Maker course format: fixed-layout
// level files (.cdt), checksum-framed thumbnail containers (.tnl) and the
// tar bundles grouping them
package smm

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/Luzifer/go_helpers/v2/str"
)

// Member names of a course bundle
const (
	MemberCourseData    = "course_data.cdt"
	MemberCourseDataSub = "course_data_sub.cdt"
	MemberThumbnail0    = "thumbnail0.tnl"
	MemberThumbnail1    = "thumbnail1.tnl"
)

// courseMembers lists the required bundle members in canonical order
var courseMembers = []string{MemberCourseData, MemberCourseDataSub, MemberThumbnail0, MemberThumbnail1}

// Course groups the two stages of a course with its two thumbnail images
type Course struct {
	Level     *Level     // main stage (course_data.cdt)
	SubLevel  *Level     // sub-stage (course_data_sub.cdt)
	Preview   *Thumbnail // wide preview banner (thumbnail0.tnl)
	Thumbnail *Thumbnail // course list entry (thumbnail1.tnl)
}

// NewCourse assembles a course from already decoded parts
func NewCourse(level, subLevel *Level, preview, thumbnail *Thumbnail) *Course {
	return &Course{
		Level:     level,
		SubLevel:  subLevel,
		Preview:   preview,
		Thumbnail: thumbnail,
	}
}

// DecodeCourse decodes the four members of a course bundle. Failures are
// wrapped in a MemberError so callers can tell which of the four inputs
// was bad.
func DecodeCourse(courseData, courseDataSub, thumbnail0, thumbnail1 []byte) (*Course, error) {
	var (
		course = &Course{}
		err    error
	)

	if course.Level, err = DecodeLevel(courseData); err != nil {
		return nil, &MemberError{Member: MemberCourseData, Err: err}
	}

	if course.SubLevel, err = DecodeLevel(courseDataSub); err != nil {
		return nil, &MemberError{Member: MemberCourseDataSub, Err: err}
	}

	if course.Preview, err = DecodeThumbnail(thumbnail0); err != nil {
		return nil, &MemberError{Member: MemberThumbnail0, Err: err}
	}

	if course.Thumbnail, err = DecodeThumbnail(thumbnail1); err != nil {
		return nil, &MemberError{Member: MemberThumbnail1, Err: err}
	}

	return course, nil
}

// CourseFromMembers builds a course from a member name to content mapping
// as produced by reading a bundle. Absent members are reported by name
// before any content is decoded.
func CourseFromMembers(members map[string][]byte) (*Course, error) {
	for _, name := range courseMembers {
		if _, ok := members[name]; !ok {
			return nil, &MemberError{Member: name, Err: ErrMissingMember}
		}
	}

	return DecodeCourse(
		members[MemberCourseData],
		members[MemberCourseDataSub],
		members[MemberThumbnail0],
		members[MemberThumbnail1],
	)
}

// ReadCourseTar reads a course bundle from a tar stream. The four known
// members are matched by base name, everything else in the archive is
// ignored.
func ReadCourseTar(r io.Reader) (*Course, error) {
	members := map[string][]byte{}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(hdr.Name)
		if !str.StringInSlice(name, courseMembers) {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading member %s: %w", name, err)
		}
		members[name] = data
	}

	return CourseFromMembers(members)
}

// WriteTar encodes all four members and writes them as a tar stream in
// canonical order
func (c *Course) WriteTar(w io.Writer) error {
	if c.Level == nil || c.SubLevel == nil || c.Preview == nil || c.Thumbnail == nil {
		return fmt.Errorf("course has empty member slots: %w", ErrInvalidData)
	}

	memberEncoders := []struct {
		name   string
		encode func() ([]byte, error)
	}{
		{MemberCourseData, c.Level.Encode},
		{MemberCourseDataSub, c.SubLevel.Encode},
		{MemberThumbnail0, c.Preview.Encode},
		{MemberThumbnail1, c.Thumbnail.Encode},
	}

	tw := tar.NewWriter(w)
	for _, member := range memberEncoders {
		data, err := member.encode()
		if err != nil {
			return &MemberError{Member: member.name, Err: err}
		}

		if err = tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     member.name,
			Mode:     0o644,
			Size:     int64(len(data)),
			ModTime:  time.Now(),
		}); err != nil {
			return fmt.Errorf("writing header for %s: %w", member.name, err)
		}

		if _, err = tw.Write(data); err != nil {
			return fmt.Errorf("writing member %s: %w", member.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar: %w", err)
	}

	return nil
}
