package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Hara602/cordID/internal/analysis"
	"github.com/Hara602/cordID/internal/model"
	"github.com/Hara602/cordID/internal/sysutil"
)

const notAvailable = "N/A"

// Reader 由 udev 属性构建设备快照：先读 sysfs（最新值），读不到时退回事件携带的属性。
// 设备拔出后 sysfs 目录已消失，此时全部来自事件属性或默认值。
type Reader struct {
	root string
}

// NewReader root 为 sysfs 挂载点，通常是 "/sys"
func NewReader(root string) *Reader {
	if root == "" {
		root = sysfsMount
	}
	return &Reader{root: root}
}

func (r *Reader) Read(env map[string]string) (model.DeviceSnapshot, error) {
	devPath := env["DEVPATH"]
	if devPath == "" {
		return model.DeviceSnapshot{}, ErrNoDevPath
	}
	sysPath := filepath.Join(r.root, devPath)

	// usb_interface 事件 (2-1:1.0) 归并到所属的 usb_device
	if strings.Contains(filepath.Base(devPath), ":") {
		if _, err := os.Stat(sysPath); err == nil {
			if root, ok := sysutil.FindUSBRoot(sysPath); ok {
				sysPath = root
				devPath = strings.TrimPrefix(root, r.root)
			}
		}
	}
	a := attrs{sysPath: sysPath, env: env}

	vid, pid := productIDs(env["PRODUCT"])

	s := model.DeviceSnapshot{
		SysPath: sysPath,
		SysName: filepath.Base(devPath),
		DevPath: devPath,
		DevNode: devNode(env["DEVNAME"]),

		Vendor:    a.get("manufacturer", model.UnknownName, "ID_VENDOR"),
		Model:     a.get("product", model.UnknownName, "ID_MODEL"),
		Serial:    a.get("serial", "", "ID_SERIAL_SHORT"),
		VendorID:  a.get("idVendor", or(vid, model.UnknownID), "ID_VENDOR_ID"),
		ProductID: a.get("idProduct", or(pid, model.UnknownID), "ID_MODEL_ID"),
		BusNum:    padNum(a.get("busnum", "?", "BUSNUM")),
		DevNum:    padNum(a.get("devnum", "?", "DEVNUM")),

		Speed:         model.ParseSpeed(a.get("speed", notAvailable, "SPEED")),
		Version:       a.get("version", notAvailable, "VERSION"),
		MaxPower:      a.get("bMaxPower", notAvailable, "BMAXPOWER"),
		NumInterfaces: a.get("bNumInterfaces", notAvailable, "BNUMINTERFACES"),
		Class:         analysis.Classify(sysPath),
	}
	return s, nil
}

type attrs struct {
	sysPath string
	env     map[string]string
}

// get sysfs 属性 -> udev 属性 -> 默认值
func (a attrs) get(sysAttr, def string, props ...string) string {
	if v, ok := sysutil.ReadAttr(a.sysPath, sysAttr); ok && v != "" {
		return v
	}
	for _, p := range props {
		if v := strings.TrimSpace(a.env[p]); v != "" {
			return v
		}
	}
	return def
}

// productIDs 解析 uevent PRODUCT=46d/c52b/1211
func productIDs(product string) (string, string) {
	parts := strings.Split(product, "/")
	if len(parts) < 2 {
		return "", ""
	}
	return hex4(parts[0]), hex4(parts[1])
}

func hex4(s string) string {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%04x", v)
}

// padNum sysfs busnum 为 "1"，udev BUSNUM 为 "001"，统一为三位
func padNum(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%03d", n)
}

func devNode(name string) string {
	if name == "" || strings.HasPrefix(name, "/dev") {
		return name
	}
	return "/dev/" + name
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
