package cmd

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"github.com/daedalus-build/daedalus/pkg"
)

type depSpec struct {
	Condition  string `yaml:"if,omitempty"`
	Rejections string `yaml:"ifNot,omitempty"`
	URL        string
	Dest       string
	Sha256     string
	Strip      int
	MarkExec   []string `yaml:"markExec,omitempty"`
}

type depConfig struct {
	Vars map[string]string
	Deps map[string]depSpec
}

var fetchDepsCmd = &cobra.Command{
	Use:   "fetch-deps",
	Short: "Downloads and unpacks the managed dependencies",
	Long: `Downloads the dependencies listed in DEPS.yml, verifies their checksums and
unpacks them into the project tree. Entries whose URL and checksum didn't
change since the last run are skipped based on DEPS.stamps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := cmd.Flags().GetBool("update")
		if err != nil {
			return err
		}

		settings, err := pkg.LoadSettings()
		if err != nil {
			return err
		}

		pkg.PrintTask("Loading manifest")
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		manifestPath := filepath.Join(root, settings.Deps.Manifest)
		stampPath := filepath.Join(root, settings.Deps.Stamps)

		cfg, cfgData, stamps, err := loadManifest(manifestPath, stampPath)
		if err != nil {
			return err
		}

		pkg.PrintTask("Downloading dependencies")
		err = downloadAndExtract(cfg, cfgData, stamps, root, manifestPath, update)

		// keep whatever progress we made, even on failure
		stampData, jErr := json.Marshal(stamps)
		if jErr != nil {
			pkg.PrintError(jErr.Error())
		} else if jErr = ioutil.WriteFile(stampPath, stampData, os.FileMode(0660)); jErr != nil {
			pkg.PrintError(jErr.Error())
		}

		if err == nil {
			pkg.PrintTask("Done")
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(fetchDepsCmd)
	fetchDepsCmd.Flags().BoolP("update", "u", false, "recalculate the checksums and update DEPS.yml in place")
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		// progress bars only clutter CI logs
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

func loadManifest(manifestPath, stampPath string) (depConfig, string, map[string]string, error) {
	var cfg depConfig
	cfgData, err := ioutil.ReadFile(manifestPath)
	if err != nil {
		return cfg, "", nil, eris.Wrapf(err, "Could not open file %s.", manifestPath)
	}

	err = yaml.Unmarshal(cfgData, &cfg)
	if err != nil {
		return cfg, "", nil, eris.Wrapf(err, "Failed to parse %s.", manifestPath)
	}

	if cfg.Vars == nil {
		cfg.Vars = map[string]string{}
	}

	stamps := map[string]string{}
	stampData, err := ioutil.ReadFile(stampPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return cfg, "", nil, eris.Wrapf(err, "Failed to read stamps file %s.", stampPath)
		}
	} else {
		err = json.Unmarshal(stampData, &stamps)
		if err != nil {
			return cfg, "", nil, eris.Wrapf(err, "Failed to parse JSON file %s.", stampPath)
		}
	}

	return cfg, string(cfgData), stamps, nil
}

// evalConditions resolves the {VAR} placeholders in the entry's URL and
// reports whether all if conditions hold and no ifNot condition does.
func evalConditions(meta *depSpec, vars map[string]string) bool {
	varMatcher := regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

	meta.URL = varMatcher.ReplaceAllStringFunc(meta.URL, func(varName string) string {
		return vars[varName[1:len(varName)-1]]
	})

	for _, condition := range strings.Split(meta.Condition, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if !ok || value == "" {
			return false
		}
	}

	for _, condition := range strings.Split(meta.Rejections, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if ok && value != "" {
			return false
		}
	}
	return true
}

func downloadAndExtract(cfg depConfig, cfgData string, stamps map[string]string, projectRoot, manifestPath string, update bool) error {
	client := &http.Client{
		Timeout: time.Minute * 30,
	}

	vars := cfg.Vars
	vars[runtime.GOARCH] = "true"
	vars[runtime.GOOS] = "true"
	if os.Getenv("CI") == "true" {
		vars["ci"] = "true"
	}

	changes := map[string]string{}
	for name, meta := range cfg.Deps {
		// conditions are evaluated even during updates because they also
		// resolve the variable placeholders in the URL
		skip := !evalConditions(&meta, vars)
		if skip && !update {
			continue
		}

		destPath := filepath.Join(projectRoot, meta.Dest)
		_, err := os.Stat(destPath)
		destExists := err == nil

		stampToken := meta.URL + "#" + meta.Sha256
		if stamp, ok := stamps[name]; ok && stampToken == stamp && destExists {
			continue
		}

		pkg.PrintSubtask(name + ":  " + meta.URL)
		if meta.Sha256 == "" && !update {
			return eris.Errorf("Dependency %s doesn't have a checksum", name)
		}

		err = installDep(client, projectRoot, name, meta, !skip, update, changes)
		if err != nil {
			return err
		}

		if !skip {
			stamps[name] = stampToken
		}
	}

	if update && len(changes) > 0 {
		pkg.PrintTask("Updating " + filepath.Base(manifestPath))
		generated, err := applyChecksumChanges(cfgData, cfg, changes)
		if err != nil {
			return err
		}

		err = ioutil.WriteFile(manifestPath, []byte(generated), os.FileMode(0660))
		if err != nil {
			return eris.Wrapf(err, "Failed to write %s", manifestPath)
		}
	}

	return nil
}

// installDep downloads a single entry, verifies its checksum and, if extract
// is set, replaces the destination with the unpacked archive content.
func installDep(client *http.Client, projectRoot, name string, meta depSpec, extract, update bool, changes map[string]string) error {
	arHandle, digest, err := fetchArchive(client, meta.URL)
	if err != nil {
		return err
	}
	defer func() {
		arHandle.Close()
		os.Remove(arHandle.Name())
	}()

	if digest != meta.Sha256 {
		if !update {
			return eris.Errorf("Checksum mismatch for %s", name)
		}

		fmt.Println("      Updating checksum")
		changes[name] = digest
	}

	if !extract {
		return nil
	}

	destPath := filepath.Join(projectRoot, meta.Dest)
	destInfo, err := os.Stat(destPath)
	if err == nil {
		pkg.PrintSubtask(fmt.Sprintf("Remove %s", destPath))
		if destInfo.IsDir() {
			err = os.RemoveAll(destPath)
		} else {
			err = os.Remove(destPath)
		}
		if err != nil {
			return err
		}
	}

	extractor, err := getExtractor(meta.URL)
	if err != nil {
		return err
	}

	stat, err := arHandle.Stat()
	if err != nil {
		return eris.Wrap(err, "Failed to inspect downloaded archive")
	}

	_, err = arHandle.Seek(0, io.SeekStart)
	if err != nil {
		return eris.Wrap(err, "Failed to rewind downloaded archive")
	}

	bar := getProgressBar(stat.Size(), "      extract")
	err = extractor(arHandle, bar, projectRoot, meta)
	if err != nil {
		return err
	}

	return markExecutables(projectRoot, meta)
}

func fetchArchive(client *http.Client, url string) (*os.File, string, error) {
	arHandle, err := ioutil.TempFile("", "daedalus_dl")
	if err != nil {
		return nil, "", eris.Wrap(err, "Failed to create temporary download file")
	}

	discard := func() {
		arHandle.Close()
		os.Remove(arHandle.Name())
	}

	resp, err := client.Get(url)
	if err != nil {
		discard()
		return nil, "", eris.Wrapf(err, "Failed to start download for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		discard()
		return nil, "", eris.Errorf("Download of %s failed with status %d", url, resp.StatusCode)
	}

	hash := sha256.New()
	bar := getProgressBar(resp.ContentLength, "     download")
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if err != nil && n < 1 {
			if err == io.EOF {
				break
			}
			discard()
			return nil, "", eris.Wrapf(err, "Failed during download of %s", url)
		}

		_, err = hash.Write(buf[:n])
		if err != nil {
			discard()
			return nil, "", eris.Wrapf(err, "Failed to calculate checksum for %s", url)
		}

		_, err = arHandle.Write(buf[:n])
		if err != nil {
			discard()
			return nil, "", eris.Wrap(err, "Failed to write download to temporary file")
		}

		bar.Write(buf[:n])
	}
	bar.Finish()

	return arHandle, hex.EncodeToString(hash.Sum(nil)), nil
}

func markExecutables(projectRoot string, meta depSpec) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	// .zip files don't carry permissions so binaries inside them have to be
	// fixed up manually
	for _, binPath := range meta.MarkExec {
		binPath = filepath.Join(projectRoot, meta.Dest, binPath)
		fi, err := os.Stat(binPath)
		if err != nil {
			return eris.Wrapf(err, "Failed to read permissions for %s", binPath)
		}

		err = os.Chmod(binPath, fi.Mode()|0700)
		if err != nil {
			return eris.Wrapf(err, "Failed to mark %s as executable", binPath)
		}
	}

	return nil
}

// applyChecksumChanges rewrites the sha256 entries in the raw manifest text
// without disturbing the rest of the document.
func applyChecksumChanges(cfgData string, cfg depConfig, changes map[string]string) (string, error) {
	generated := cfgData
	for name, newChecksum := range changes {
		pos := strings.Index(generated, name+":\n")
		if pos == -1 {
			return "", eris.Errorf("Failed to find the manifest section for %s", name)
		}

		oldChecksum := cfg.Deps[name].Sha256
		if oldChecksum == "" {
			start := pos + len(name) + 2
			generated = generated[:start] + "    sha256: " + newChecksum + "\n" + generated[start:]
			continue
		}

		subPos := strings.Index(generated[pos:], "sha256: "+oldChecksum)
		if subPos == -1 {
			return "", eris.Errorf("Failed to find the checksum entry for %s", name)
		}

		start := pos + subPos + len("sha256: ")
		end := start + len(oldChecksum)
		generated = generated[:start] + newChecksum + generated[end:]
	}

	return generated, nil
}

type archiveExtractor func(*os.File, *progressbar.ProgressBar, string, depSpec) error

// openExtractorDest normalizes the entry path, strips ds.Strip leading
// elements and creates the destination file.
func openExtractorDest(destPath string, item string, ds depSpec) (*os.File, string, error) {
	pathParts := strings.Split(filepath.Clean(item), string(filepath.Separator))
	if len(pathParts) <= ds.Strip {
		return nil, "/", nil
	}

	dest := filepath.Join(destPath, strings.Join(pathParts[ds.Strip:], string(filepath.Separator)))
	if dest == destPath {
		return nil, "/", nil
	}

	// entries like ../../etc/passwd must never leave the destination
	if !strings.HasPrefix(dest, destPath+string(filepath.Separator)) {
		return nil, "", eris.Errorf("Archive entry %s points outside of the destination directory", item)
	}

	destParent := filepath.Dir(dest)
	err := os.MkdirAll(destParent, os.FileMode(0770))
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to create directory %s", destParent)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to create file %s", dest)
	}

	return destHandle, dest, nil
}

func getExtractor(url string) (archiveExtractor, error) {
	if strings.HasSuffix(url, ".zip") {
		return extractZip, nil
	}

	if strings.HasSuffix(url, ".tar.gz") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ds depSpec) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, projectRoot, ds)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.bz2") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ds depSpec) error {
			return extractTar(bzip2.NewReader(f), f, bar, projectRoot, ds)
		}, nil
	}

	if strings.HasSuffix(url, ".tar.xz") {
		return func(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ds depSpec) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, f, bar, projectRoot, ds)
		}, nil
	}

	return nil, eris.New("Archive format not supported")
}

func extractZip(f *os.File, bar *progressbar.ProgressBar, projectRoot string, ds depSpec) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return err
	}

	buf := make([]byte, 4096)
	destPath := filepath.Join(projectRoot, ds.Dest)
	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		destHandle, dest, err := openExtractorDest(destPath, item.Name, ds)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			destHandle.Close()
			return eris.Wrap(err, "Failed to open archive entry")
		}

		for {
			n, err := itemHandle.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				itemHandle.Close()
				destHandle.Close()
				return eris.Wrapf(err, "Failed to read archive entry %s", item.Name)
			}

			_, err = destHandle.Write(buf[:n])
			if err != nil {
				itemHandle.Close()
				destHandle.Close()
				return eris.Wrapf(err, "Failed to write extracted file %s", dest)
			}

			pos, err := f.Seek(0, io.SeekCurrent)
			if err == nil {
				bar.Set64(pos)
			}
		}

		itemHandle.Close()
		destHandle.Close()
	}

	return nil
}

func extractTar(r io.Reader, f *os.File, bar *progressbar.ProgressBar, projectRoot string, ds depSpec) error {
	buf := make([]byte, 4096)
	archive := tar.NewReader(r)
	destPath := filepath.Join(projectRoot, ds.Dest)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "Failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		destHandle, dest, err := openExtractorDest(destPath, item.Name, ds)
		if err != nil {
			return err
		}

		if destHandle == nil {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			destHandle.Close()
			err := os.Remove(dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to remove placeholder file %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		os.Chmod(dest, fi.Mode())

		for {
			n, err := archive.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				destHandle.Close()
				return eris.Wrapf(err, "Failed to read archive entry %s", item.Name)
			}

			_, err = destHandle.Write(buf[:n])
			if err != nil {
				destHandle.Close()
				return eris.Wrapf(err, "Failed to write extracted file %s", dest)
			}

			pos, err := f.Seek(0, io.SeekCurrent)
			if err == nil {
				bar.Set64(pos)
			}
		}

		destHandle.Close()
	}

	return nil
}
