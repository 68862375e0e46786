package templates

import "os"

const configTemplate = `
environment: development

transfer:
  max_concurrent: 4
  connect_timeout: 10
  timeout: 30

cache:
  capacity: 64
  eviction: insertion
  thumbnail_width: 0

download:
  min_free_mb: 100
  chunk_size: 65536

installer:
  output_dir: content
  artifact_ext: .bps
  atomic_config_write: false
  # system_root: /storage_mlc/sys/title/00050010/10040100/content
  # plugin_config: /storage_sdcard/wiiu/environments/aroma/plugins/config/style-miiu.json
  # menu_title_id: "0005001010040100"

patcher:
  command: flips
  args: ["--apply", "{patch}", "{base}", "{out}"]
`

func GetConfigTemplate() string {
	return configTemplate
}

func WriteConfig(path string) error {
	configTemplate := GetConfigTemplate()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(configTemplate)
	if err != nil {
		return err
	}

	return nil
}
