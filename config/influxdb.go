package config

import (
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

type InfluxClient struct {
	client   client.Client
	database string
}

func NewInfluxDB(cfg InfluxConfig) (*InfluxClient, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr: cfg.URL,
	})

	if err != nil {
		return nil, err
	}

	return &InfluxClient{
		client:   c,
		database: cfg.Database,
	}, nil
}

func (c *InfluxClient) NewBatchPoints() (client.BatchPoints, error) {
	return client.NewBatchPoints(client.BatchPointsConfig{
		Database:  c.database,
		Precision: "ns",
	})
}

func (c *InfluxClient) NewPoint(name string, tags map[string]string, fields map[string]interface{}, at time.Time) error {
	bp, err := c.NewBatchPoints()
	if err != nil {
		return err
	}

	point, err := client.NewPoint(name, tags, fields, at)
	if err != nil {
		return err
	}

	bp.AddPoint(point)

	return c.client.Write(bp)
}

func (c *InfluxClient) Close() error {
	return c.client.Close()
}
